// Package server exposes the backtest lab over HTTP: session CRUD, run
// cancellation, a websocket status stream, health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fx-backtest-lab/internal/chart"
	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/idgen"
	"fx-backtest-lab/internal/marketdata"
	"fx-backtest-lab/internal/observability"
	"fx-backtest-lab/internal/oracle"
	"fx-backtest-lab/internal/simulation"
	"fx-backtest-lab/internal/storage"
)

// Options contains the collaborators of a Server.
type Options struct {
	Provider marketdata.Provider
	Oracle   oracle.Oracle
	Renderer chart.Renderer
	Sessions storage.SessionStore
	Users    storage.UserStore
	Archive  storage.TradeArchive
	Metrics  *observability.Metrics

	// SaveEachTrade is passed through to every runner.
	SaveEachTrade bool
}

// Server runs backtest sessions on request and serves their state.
type Server struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	running map[string]*simulation.Runner
}

// New creates a Server.
func New(opts Options) *Server {
	return &Server{
		opts:    opts,
		logger:  log.With().Str("component", "http_server").Logger(),
		running: make(map[string]*simulation.Runner),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", s.handleCreate)
	mux.HandleFunc("GET /api/sessions", s.handleList)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGet)
	mux.HandleFunc("POST /api/sessions/{id}/cancel", s.handleCancel)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/sessions/{id}/ws", s.handleStream)

	if s.opts.Users != nil {
		mux.HandleFunc("POST /api/users", s.handleUpsertUser)
		mux.HandleFunc("GET /api/users", s.handleListUsers)
		mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())

	return mux
}

// createResponse is the POST /api/sessions reply.
type createResponse struct {
	SessionID string `json:"session_id"`
}

// handleCreate validates the posted configuration and starts the run in
// the background. The session id is assigned before the run starts so the
// caller can poll or stream immediately.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg simulation.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(time.Now()); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	cfg.SessionID = idgen.NewRunID()
	runner := simulation.NewRunner(simulation.Options{
		Provider:      s.opts.Provider,
		Oracle:        s.opts.Oracle,
		Renderer:      s.opts.Renderer,
		Sessions:      s.opts.Sessions,
		Archive:       s.opts.Archive,
		Metrics:       s.opts.Metrics,
		SaveEachTrade: s.opts.SaveEachTrade,
	})

	s.mu.Lock()
	s.running[cfg.SessionID] = runner
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, cfg.SessionID)
			s.mu.Unlock()
		}()
		// The run outlives the HTTP request.
		if _, err := runner.Run(context.Background(), cfg); err != nil {
			s.logger.Error().Err(err).Str("session_id", cfg.SessionID).Msg("backtest run failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, createResponse{SessionID: cfg.SessionID})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.opts.Sessions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing sessions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"session_ids": ids})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := s.opts.Sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "loading session failed")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleCancel requests cooperative cancellation of a running session.
// Returns 409 when the session exists but is no longer running.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	runner, ok := s.running[id]
	s.mu.Unlock()

	if ok {
		runner.Cancel()
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if _, err := s.opts.Sessions.Get(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeError(w, http.StatusConflict, "session is not running")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	_, isRunning := s.running[id]
	s.mu.Unlock()
	if isRunning {
		writeError(w, http.StatusConflict, "session is still running")
		return
	}

	removed, err := s.opts.Sessions.Delete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "deleting session failed")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpsertUser registers or updates a user record.
func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if u.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "email is required")
		return
	}
	if u.ID == "" {
		u.ID = idgen.NewRunID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if err := s.opts.Users.Upsert(r.Context(), &u); err != nil {
		writeError(w, http.StatusInternalServerError, "saving user failed")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.opts.Users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing users failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*domain.User{"users": users})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.opts.Users.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "loading user failed")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// statusOf reads the persisted snapshot of a session for streaming.
func (s *Server) statusOf(ctx context.Context, id string) (*domain.BacktestSession, error) {
	return s.opts.Sessions.Get(ctx, id)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
