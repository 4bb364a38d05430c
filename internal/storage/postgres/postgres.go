// Package postgres reads published scenario documents from Postgres.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/LockStep/internal/config"
	"github.com/AaronLay10/LockStep/internal/scenario"
)

// ScenarioStore is a read-only view of the scenarios table.
type ScenarioStore struct {
	db *sql.DB
}

// DSN builds a lib/pq connection string from the standard PG* variables.
// PGPASSWORD honours the *_FILE convention.
func DSN() (string, error) {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "lockstep")
	dbname := getEnv("PGDATABASE", "lockstep")
	sslmode := getEnv("PGSSLMODE", "disable")
	password, err := config.ResolveSecret("PGPASSWORD")
	if err != nil {
		return "", err
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s", host, port, user, dbname, sslmode)
	if password != "" {
		dsn += " password=" + password
	}
	return dsn, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Open connects with DSN() and makes sure the table exists.
func Open(ctx context.Context) (*ScenarioStore, error) {
	dsn, err := DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &ScenarioStore{db: db}
	if err := s.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create scenarios table: %w", err)
	}
	return s, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *ScenarioStore {
	return &ScenarioStore{db: db}
}

func (s *ScenarioStore) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS scenarios (
			id         TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			published  BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// LoadScenarios returns every published document, ordered by row id.
// A row that does not parse fails the whole load so a broken scenario
// is seen at startup.
func (s *ScenarioStore) LoadScenarios(ctx context.Context) ([]*scenario.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM scenarios WHERE published ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var docs []*scenario.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := DecodeDocument(id, raw)
		if err != nil {
			return nil, fmt.Errorf("scenario row %s: %w", id, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DecodeDocument accepts either a full pack or a single scenario. A bare
// scenario without a scenarioId takes the row id.
func DecodeDocument(rowID string, raw []byte) (*scenario.Document, error) {
	var head map[string]json.RawMessage
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("doc is not a JSON object: %w", err)
	}
	if _, isPack := head["scenarios"]; isPack {
		return scenario.ParseDocument(raw)
	}
	sc, err := scenario.ParseInline(raw)
	if err != nil {
		return nil, err
	}
	if _, named := head["scenarioId"]; !named && rowID != "" {
		sc.ID = rowID
	}
	return &scenario.Document{Scenarios: []*scenario.Scenario{sc}}, nil
}

func (s *ScenarioStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
