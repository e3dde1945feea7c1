// Package server exposes the QC workflow over REST. Every response uses
// the envelope the clients have always consumed: {"success": true, "data":
// ...} on success and {"success": false, "message": ...} on failure.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hyeonwoo-dev/qcgate/internal/activity"
	"github.com/hyeonwoo-dev/qcgate/internal/dashboard"
	"github.com/hyeonwoo-dev/qcgate/internal/execution"
	"github.com/hyeonwoo-dev/qcgate/internal/feedback"
	"github.com/hyeonwoo-dev/qcgate/internal/logging"
	"github.com/hyeonwoo-dev/qcgate/internal/project"
	"github.com/hyeonwoo-dev/qcgate/internal/report"
	"github.com/hyeonwoo-dev/qcgate/internal/testplan"
)

// Status reports runtime lifecycle states for the HTTP server.
type Status string

const (
	StatusStarting Status = "starting"
	StatusReady    Status = "ready"
	StatusDraining Status = "draining"
)

// Deps bundles the domain services the handlers dispatch to.
type Deps struct {
	Projects   *project.Store
	Plans      *testplan.Store
	Catalogue  *testplan.Catalogue
	Executions *execution.Store
	Feedback   *feedback.Router
	Reports    *report.Flow
	Dashboard  *dashboard.Service
	Activity   *activity.Log
	Events     execution.Publisher
}

// Server wraps the HTTP listener and the QC API handlers.
type Server struct {
	settings Settings
	deps     Deps
	logger   logging.Printf
	clock    func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    Status
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(logger logging.Printf) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New prepares an API server over the given dependencies.
func New(settings Settings, deps Deps, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		deps:     deps,
		logger:   logging.Nop(),
		clock:    func() time.Time { return time.Now().UTC() },
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler builds the full route table. Exposed so tests can drive the API
// through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("GET /api/qc/stats", s.authenticated(s.handleStats))
	mux.Handle("GET /api/qc/requests", s.authenticated(s.handleRequests))
	mux.Handle("POST /api/qc/test-plan", s.authenticated(s.handleSavePlan))
	mux.Handle("GET /api/qc/test-plan/{id}", s.authenticated(s.handleLoadPlan))
	mux.Handle("GET /api/qc/test-sets", s.authenticated(s.handleTestSets))
	mux.Handle("POST /api/qc/save-test-progress/{id}", s.authenticated(s.handleSaveProgress))
	mux.Handle("GET /api/qc/load-test-progress/{id}", s.authenticated(s.handleLoadProgress))
	mux.Handle("DELETE /api/qc/clear-test-progress/{id}", s.authenticated(s.handleClearProgress))
	mux.Handle("POST /api/qc/test-execution", s.authenticated(s.handleSubmitExecution))
	mux.Handle("POST /api/qc/feedback", s.authenticated(s.handleSubmitFeedback))
	mux.Handle("GET /api/qc/feedback-draft/{id}", s.authenticated(s.handleFeedbackDraft))
	mux.Handle("GET /api/qc/available-pes/{projectId}", s.authenticated(s.handleAvailablePEs))
	mux.Handle("POST /api/qc/approve-verification/{id}", s.authenticated(s.handleApproveVerification))
	mux.Handle("GET /api/executive-dashboard/workflow", s.authenticated(s.handleWorkflow))
	mux.Handle("GET /api/po/projects-by-status", s.authenticated(s.handleProjectsByStatus))
	return mux
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("server: already started")
	}
	listener, err := net.Listen("tcp", s.settings.Listen)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.settings.Listen, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		srv.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = srv
	s.status = StatusReady
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("server: serve error: %v", err)
		}
	}()
	s.logger.Printf("server: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight
// requests to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// CurrentStatus reports the server's lifecycle state.
func (s *Server) CurrentStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(s.startTime).Seconds())
}

// authenticated enforces bearer-token auth around a handler.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			fail(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next(w, r)
	})
}

func (s *Server) authorize(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return false
	}
	for _, accepted := range s.settings.Tokens {
		if token == accepted {
			return true
		}
	}
	return false
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        string(s.CurrentStatus()),
		UptimeSeconds: s.uptimeSeconds(),
	})
}

// envelope is the response shape every client expects.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
