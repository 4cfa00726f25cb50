// Package server exposes the HTTP control plane of Sonde: session bootstrap
// and teardown, liveness/readiness probes, and the Prometheus metrics
// endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sondelabs/sonde/internal/app"
	"github.com/sondelabs/sonde/internal/health"
	"github.com/sondelabs/sonde/internal/observe"
	"github.com/sondelabs/sonde/pkg/forms"
)

// shutdownTimeout bounds the HTTP server's graceful drain.
const shutdownTimeout = 10 * time.Second

// Sessions is the slice of the session registry the HTTP handlers need.
// *app.SessionManager satisfies it.
type Sessions interface {
	Start(ctx context.Context, req app.StartRequest) (app.SessionInfo, error)
	Stop(ctx context.Context, sessionID string) (bool, error)
	Active() []app.SessionInfo
}

// Compile-time check that the real registry satisfies [Sessions].
var _ Sessions = (*app.SessionManager)(nil)

// Config holds the dependencies of a [Server].
type Config struct {
	// ListenAddr is the TCP address to listen on (e.g., ":8080").
	ListenAddr string

	// Sessions is the session registry driven by the bootstrap endpoints.
	Sessions Sessions

	// Health supplies the /healthz and /readyz handlers. When nil a handler
	// with no readiness checks is used.
	Health *health.Handler

	// Metrics instruments the request middleware. When nil the global
	// default instance is used.
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Server is the Sonde control server.
type Server struct {
	addr   string
	router *chi.Mux
	srv    *http.Server

	sessions Sessions
	log      *slog.Logger
}

// New creates a Server with all routes registered.
func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("server: session registry is required")
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	s := &Server{
		addr:     cfg.ListenAddr,
		router:   chi.NewRouter(),
		sessions: cfg.Sessions,
		log:      cfg.Logger,
	}

	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(observe.Middleware(cfg.Metrics))

	s.router.Get("/healthz", cfg.Health.Healthz)
	s.router.Get("/readyz", cfg.Health.Readyz)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.startSession)
		r.Get("/", s.listSessions)
		r.Delete("/{id}", s.stopSession)
	})

	return s, nil
}

// Handler returns the server's route tree, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then drains gracefully.
func (s *Server) ListenAndServe(ctx context.Context, tlsCertFile, tlsKeyFile string) error {
	s.srv = &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control server listening", "addr", s.addr, "tls", tlsCertFile != "")
		var err error
		if tlsCertFile != "" {
			err = s.srv.ListenAndServeTLS(tlsCertFile, tlsKeyFile)
		} else {
			err = s.srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return ctx.Err()
}

// startRequestBody is the JSON bootstrap payload for POST /v1/sessions.
type startRequestBody struct {
	SessionID   string `json:"sessionId"`
	RoomName    string `json:"roomName"`
	Mode        string `json:"mode"`
	AccountID   string `json:"accountId"`
	ProjectID   string `json:"projectId"`
	UserID      string `json:"userId"`
	InterviewID string `json:"interviewId,omitempty"`
}

// sessionResponse is the JSON shape returned for one session.
type sessionResponse struct {
	SessionID   string    `json:"sessionId"`
	RoomName    string    `json:"roomName"`
	Mode        string    `json:"mode"`
	InterviewID string    `json:"interviewId"`
	StartedAt   time.Time `json:"startedAt"`
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var body startRequestBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return
	}

	mode := forms.Mode(body.Mode)
	if !mode.IsValid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("invalid mode %q; valid values: %s, %s", body.Mode, forms.ModeDiscovery, forms.ModePostSales),
		})
		return
	}
	if body.SessionID == "" || body.RoomName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "sessionId and roomName are required"})
		return
	}

	info, err := s.sessions.Start(r.Context(), app.StartRequest{
		SessionID:   body.SessionID,
		RoomName:    body.RoomName,
		Mode:        mode,
		AccountID:   body.AccountID,
		ProjectID:   body.ProjectID,
		UserID:      body.UserID,
		InterviewID: body.InterviewID,
	})
	if err != nil {
		status := http.StatusBadGateway
		if strings.Contains(err.Error(), "already running") {
			status = http.StatusConflict
		}
		s.log.Warn("session start failed", "session_id", body.SessionID, "err", err)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(info))
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	active := s.sessions.Active()
	out := make([]sessionResponse, len(active))
	for i, info := range active {
		out[i] = toResponse(info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := s.sessions.Stop(r.Context(), id)
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no running session %q", id)})
		return
	}
	if err != nil {
		s.log.Warn("session stop incomplete", "session_id", id, "err", err)
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toResponse(info app.SessionInfo) sessionResponse {
	return sessionResponse{
		SessionID:   info.SessionID,
		RoomName:    info.RoomName,
		Mode:        string(info.Mode),
		InterviewID: info.InterviewID,
		StartedAt:   info.StartedAt,
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
