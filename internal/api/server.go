// Package api is the network surface: a websocket endpoint carrying the
// game protocol plus a few HTTP endpoints for lobbies and operators.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/AaronLay10/LockStep/internal/config"
	"github.com/AaronLay10/LockStep/internal/events"
	"github.com/AaronLay10/LockStep/internal/metrics"
	"github.com/AaronLay10/LockStep/internal/room"
	"github.com/AaronLay10/LockStep/internal/session"
	"github.com/AaronLay10/LockStep/internal/version"
)

const (
	timeout = 10 * time.Second
	qrSize  = 320
)

// Server serves the protocol for one orchestrator.
type Server struct {
	cfg      *config.ServerConfig
	sessions *session.Orchestrator
	hub      *Hub
	operator config.Credentials
	prefix   string
	router   *httprouter.Router
}

// NewServer builds the router. hub must be the Broadcaster the
// orchestrator was created with.
func NewServer(cfg *config.ServerConfig, sessions *session.Orchestrator, hub *Hub, operator config.Credentials) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		hub:      hub,
		operator: operator,
		prefix:   strings.TrimSuffix(cfg.Server.Prefix, "/"),
		router:   httprouter.New(),
	}

	s.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("http handler panicked")
		http.Error(w, "Server error", http.StatusInternalServerError)
	}

	p := s.prefix
	s.router.GET(p+"/healthz", serveHealthCheck)
	s.router.GET(p+"/version", serveVersion)
	s.router.GET(p+"/api/scenarios", s.serveScenarios)
	s.router.GET(p+"/api/rooms/:code", RequireOperator(operator, s.serveRoom))
	s.router.GET(p+"/events", RequireOperator(operator, serveEvents))
	s.router.GET(p+"/rooms/:code/qr.png", s.serveQR)
	s.router.GET(p+"/ws", s.serveWS)
	s.router.Handler(http.MethodGet, p+"/metrics", metrics.Handler())

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func serveHealthCheck(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Ok\n")
}

func serveVersion(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "lockstep v"+version.Version+"\n")
}

func (s *Server) serveScenarios(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.sessions.Scenarios())
}

func (s *Server) serveRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := s.sessions.View(ps.ByName("code"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorPayload{Error: "Room not found", Code: "NOT_FOUND"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// serveEvents returns the event log, for one room with ?room=CODE or
// the newest N with ?limit=N.
func serveEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	if code := q.Get("room"); code != "" {
		writeJSON(w, http.StatusOK, events.RoomEvents(room.NormalizeCode(code)))
		return
	}
	n, _ := strconv.Atoi(q.Get("limit"))
	writeJSON(w, http.StatusOK, events.RecentEvents(n))
}

// joinURL is the link a QR code points at.
func (s *Server) joinURL(r *http.Request, code string) string {
	base := strings.TrimSuffix(s.cfg.Server.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host + s.prefix
	}
	return base + "/?room=" + url.QueryEscape(code)
}

func (s *Server) serveQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := room.NormalizeCode(ps.ByName("code"))
	if !s.sessions.RoomExists(code) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	png, err := qrcode.Encode(s.joinURL(r, code), qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Str("room", code).Msg("qr generation failed")
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// ListenAndServe serves until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Server.Bind, strconv.Itoa(s.cfg.Server.Port)),
		Handler:           s.router,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: timeout,
	}

	errs := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLSEnabled() {
			log.Info().Str("addr", srv.Addr).Str("prefix", s.prefix+"/").Msg("listening (TLS)")
			err = srv.ListenAndServeTLS(s.cfg.Server.TLSCert, s.cfg.Server.TLSKey)
		} else {
			log.Info().Str("addr", srv.Addr).Str("prefix", s.prefix+"/").Msg("listening")
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err, ok := <-errs:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.CloseAll()
	return srv.Shutdown(shutdownCtx)
}
