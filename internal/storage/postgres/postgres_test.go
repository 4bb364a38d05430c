package postgres

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const bare = `{
	"title": "Row",
	"startNodeId": "s",
	"nodes": [
		{"id": "s", "type": "start_node", "nextNodeId": "w"},
		{"id": "w", "type": "win_node"}
	]
}`

func TestDSN(t *testing.T) {
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGPORT", "6432")
	t.Setenv("PGUSER", "")
	t.Setenv("PGDATABASE", "")
	t.Setenv("PGSSLMODE", "")
	t.Setenv("PGPASSWORD", "")
	t.Setenv("PGPASSWORD_FILE", "")

	dsn, err := DSN()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "host=db.internal port=6432 user=lockstep dbname=lockstep sslmode=disable"
	if dsn != want {
		t.Errorf("expected %q, got %q", want, dsn)
	}
}

func TestDSNPasswordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pw")
	if err := os.WriteFile(path, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PGPASSWORD", "")
	t.Setenv("PGPASSWORD_FILE", path)

	dsn, err := DSN()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(dsn, " password=s3cret") {
		t.Errorf("expected password from file, got %q", dsn)
	}
}

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument("row_one", []byte(bare))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Scenarios) != 1 || doc.Scenarios[0].ID != "row_one" {
		t.Fatalf("expected bare scenario to take row id, got %+v", doc.Scenarios)
	}

	named := strings.Replace(bare, `"title": "Row",`, `"scenarioId": "own", "title": "Row",`, 1)
	doc, err = DecodeDocument("row_two", []byte(named))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Scenarios[0].ID != "own" {
		t.Errorf("expected document id to win, got %s", doc.Scenarios[0].ID)
	}

	pack := `{"version": 1, "scenarios": [` + named + `]}`
	doc, err = DecodeDocument("row_three", []byte(pack))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Scenarios) != 1 || doc.Scenarios[0].ID != "own" {
		t.Errorf("unexpected pack decode: %+v", doc.Scenarios)
	}
}

func TestDecodeDocumentRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not an object", `[1,2]`},
		{"missing start", `{"title": "x", "nodes": []}`},
		{"empty pack", `{"scenarios": []}`},
		{"null puzzle", `{"startNodeId": "n", "nodes": [{"id": "n", "type": "puzzle_node", "puzzles": [null]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeDocument("r", []byte(tt.raw)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestLoadScenariosLive runs against a real database when LOCKSTEP_TEST_PG
// is set; PG* variables select the server.
func TestLoadScenariosLive(t *testing.T) {
	if os.Getenv("LOCKSTEP_TEST_PG") == "" {
		t.Skip("LOCKSTEP_TEST_PG not set")
	}
	ctx := context.Background()
	s, err := Open(ctx)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO scenarios (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, published = TRUE`,
		"zz_live_test", bare); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	defer s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = $1`, "zz_live_test")

	docs, err := s.LoadScenarios(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, d := range docs {
		for _, sc := range d.Scenarios {
			if sc.ID == "zz_live_test" {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected seeded scenario to load")
	}
}
