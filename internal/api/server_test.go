package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AaronLay10/LockStep/internal/config"
	"github.com/AaronLay10/LockStep/internal/events"
	"github.com/AaronLay10/LockStep/internal/room"
	"github.com/AaronLay10/LockStep/internal/scenario"
	"github.com/AaronLay10/LockStep/internal/session"
)

func noTicker(func()) func() { return func() {} }

// newTestServer wires a full stack over the builtin catalog.
func newTestServer(t *testing.T, prefix string, creds config.Credentials) (*Server, *httptest.Server) {
	t.Helper()
	catalog := scenario.NewCatalog()
	if err := catalog.LoadBuiltin(); err != nil {
		t.Fatalf("failed to load builtin scenarios: %v", err)
	}
	hub := NewHub()
	sessions := session.New(room.NewRegistry(room.Config{}), catalog, hub, session.Config{StartTicker: noTicker})

	cfg := config.Defaults()
	cfg.Server.Prefix = prefix
	s := NewServer(cfg, sessions, hub, creds)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hub.CloseAll()
		ts.Close()
	})
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, body
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t, "/", config.Credentials{})

	resp, body := get(t, ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "Ok\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestVersionEndpoint(t *testing.T) {
	_, ts := newTestServer(t, "/", config.Credentials{})

	_, body := get(t, ts.URL+"/version")
	if !strings.HasPrefix(string(body), "lockstep v") {
		t.Errorf("unexpected body %q", body)
	}
}

func TestScenariosEndpoint(t *testing.T) {
	_, ts := newTestServer(t, "/", config.Credentials{})

	resp, body := get(t, ts.URL+"/api/scenarios")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var list []scenario.Summary
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	found := false
	for _, s := range list {
		if s.ScenarioID == "derelict_station" && s.Title != "" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected derelict_station in %s", body)
	}
}

func TestPrefixedRoutes(t *testing.T) {
	_, ts := newTestServer(t, "/lockstep/", config.Credentials{})

	if resp, _ := get(t, ts.URL+"/lockstep/healthz"); resp.StatusCode != http.StatusOK {
		t.Errorf("expected prefixed route to serve, got %d", resp.StatusCode)
	}
	if resp, _ := get(t, ts.URL+"/healthz"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected unprefixed route to 404, got %d", resp.StatusCode)
	}
}

func TestQRCode(t *testing.T) {
	s, ts := newTestServer(t, "/", config.Credentials{})

	if resp, _ := get(t, ts.URL+"/rooms/NOPE00/qr.png"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown room, got %d", resp.StatusCode)
	}

	joined, err := s.sessions.CreateRoom("conn-qr", session.CreateRequest{ScenarioID: "derelict_station"})
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	resp, body := get(t, ts.URL+"/rooms/"+strings.ToLower(joined.RoomCode)+"/qr.png")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("expected a PNG body")
	}
}

func TestJoinURL(t *testing.T) {
	s, _ := newTestServer(t, "/play", config.Credentials{})

	req := httptest.NewRequest("GET", "/play/rooms/ABCDEF/qr.png", nil)
	req.Host = "venue.local:3001"
	if got := s.joinURL(req, "ABCDEF"); got != "http://venue.local:3001/play/?room=ABCDEF" {
		t.Errorf("unexpected derived url %q", got)
	}

	req.Header.Set("X-Forwarded-Proto", "https")
	if got := s.joinURL(req, "ABCDEF"); got != "https://venue.local:3001/play/?room=ABCDEF" {
		t.Errorf("unexpected forwarded url %q", got)
	}

	s.cfg.Server.PublicURL = "https://play.example.com/"
	if got := s.joinURL(req, "ABCDEF"); got != "https://play.example.com/?room=ABCDEF" {
		t.Errorf("unexpected public url %q", got)
	}
}

func TestOperatorEndpoints(t *testing.T) {
	creds := config.Credentials{User: "operator", Pass: "opsecret"}
	s, ts := newTestServer(t, "/", creds)
	events.Clear()

	joined, err := s.sessions.CreateRoom("conn-op", session.CreateRequest{ScenarioID: "derelict_station", PlayerName: "Ana"})
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	if resp, _ := get(t, ts.URL+"/events"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", ts.URL+"/events?room="+strings.ToLower(joined.RoomCode), nil)
	req.SetBasicAuth("operator", "opsecret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var evs []events.Event
	if err := json.NewDecoder(resp.Body).Decode(&evs); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	resp.Body.Close()
	if len(evs) == 0 || evs[0].Name != "room.created" {
		t.Errorf("expected room.created first, got %+v", evs)
	}

	req, _ = http.NewRequest("GET", ts.URL+"/api/rooms/"+joined.RoomCode, nil)
	req.SetBasicAuth("operator", "opsecret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var view session.RoomView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	resp.Body.Close()
	if view.RoomCode != joined.RoomCode || len(view.Players) != 1 || view.Players[0].Name != "Ana" {
		t.Errorf("unexpected view %+v", view)
	}

	req, _ = http.NewRequest("GET", ts.URL+"/api/rooms/ZZZZZZ", nil)
	req.SetBasicAuth("operator", "opsecret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown room, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, "/", config.Credentials{})

	resp, body := get(t, ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "lockstep_rooms_active") {
		t.Error("expected lockstep collectors in metrics output")
	}
}

func TestEventsLimit(t *testing.T) {
	_, ts := newTestServer(t, "/", config.Credentials{})
	events.Clear()
	for i := 0; i < 4; i++ {
		events.Emit("info", "room.created", "", map[string]interface{}{"i": i})
	}

	_, body := get(t, ts.URL+"/events?limit=2")
	var evs []events.Event
	if err := json.Unmarshal(body, &evs); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	if len(evs) != 2 || evs[1].Fields["i"] != float64(3) {
		t.Errorf("expected the newest two events, got %+v", evs)
	}
}
