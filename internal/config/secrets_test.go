package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestResolveSecret(t *testing.T) {
	tests := []struct {
		name string
		env  string
		file string
		want string
	}{
		{name: "env only", env: "env-value", want: "env-value"},
		{name: "file only", file: "file-value\n", want: "file-value"},
		{name: "file wins over env", env: "env-value", file: "file-value", want: "file-value"},
		{name: "neither set", want: ""},
		{name: "file whitespace trimmed", file: "  padded  \n\n", want: "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const envName = "LOCKSTEP_TEST_SECRET"
			t.Setenv(envName, tt.env)
			t.Setenv(envName+"_FILE", "")
			if tt.file != "" {
				t.Setenv(envName+"_FILE", writeSecret(t, tt.file))
			}

			got, err := ResolveSecret(envName)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveSecret_MissingFile(t *testing.T) {
	const envName = "LOCKSTEP_TEST_SECRET_MISSING"
	t.Setenv(envName+"_FILE", "/nonexistent/path/to/secret.txt")

	_, err := ResolveSecret(envName)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), envName+"_FILE") {
		t.Errorf("error should name the env var, got %v", err)
	}
}

func TestResolveCredentials(t *testing.T) {
	t.Setenv("LOCKSTEP_TEST_OPERATOR_USER", "op")
	t.Setenv("LOCKSTEP_TEST_OPERATOR_PASS_FILE", writeSecret(t, "hunter2\n"))

	creds, err := ResolveCredentials("LOCKSTEP_TEST_OPERATOR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.User != "op" || creds.Pass != "hunter2" {
		t.Errorf("unexpected credentials %+v", creds)
	}
	if !creds.Set() {
		t.Error("expected credentials to be set")
	}

	if (Credentials{User: "op"}).Set() {
		t.Error("half a pair must not count as set")
	}
}
