package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockstep.yaml")
	yaml := "version: 1\nserver:\n  port: 4000\n  bind: 127.0.0.1\nrooms:\n  grace_period: 30s\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	f := &flags{}
	cmd := newRootCmd(f)
	if err := cmd.ParseFlags([]string{"--config", path, "--port", "5000", "-v"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}

	cfg, err := f.load(cmd.Flags())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("expected flag port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("expected file bind to survive, got %s", cfg.Server.Bind)
	}
	if cfg.Rooms.GracePeriod != 30*time.Second {
		t.Errorf("expected 30s grace period, got %s", cfg.Rooms.GracePeriod)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected verbose to force debug, got %s", cfg.Log.Level)
	}
}

func TestEnvironmentSetsFlags(t *testing.T) {
	t.Setenv("LOCKSTEP_PORT", "6100")
	t.Setenv("LOCKSTEP_MQTT_URL", "tcp://broker:1883")

	cmd := newCmd()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	fs := cmd.Flags()
	if port, _ := fs.GetInt("port"); port != 6100 {
		t.Errorf("expected env port 6100, got %d", port)
	}
	if url, _ := fs.GetString("mqtt-url"); url != "tcp://broker:1883" {
		t.Errorf("expected env broker, got %q", url)
	}
	if !fs.Changed("port") {
		t.Error("env-provided flags should count as set")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	f := &flags{}
	cmd := newRootCmd(f)
	if err := cmd.ParseFlags([]string{"--tls-cert", "cert.pem"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	if _, err := f.load(cmd.Flags()); err == nil {
		t.Error("expected error for cert without key")
	}
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.json")
	pack := `version: 1
scenarios:
  - scenarioId: tiny
    title: Tiny
    startNodeId: s
    nodes:
      - id: s
        type: start_node
        nextNodeId: w
      - id: w
        type: win_node
`
	if err := os.WriteFile(good, []byte(pack), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte(`{"scenarios": [{"scenarioId": "x", "nodes": []}]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := newCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", good, bad})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for the bad file")
	}
	if !strings.Contains(out.String(), "ok   "+good+": tiny (2 nodes)") {
		t.Errorf("missing ok line in %q", out.String())
	}
	if !strings.Contains(out.String(), "FAIL "+bad) {
		t.Errorf("missing FAIL line in %q", out.String())
	}
}
