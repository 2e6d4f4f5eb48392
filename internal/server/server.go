// Package server exposes the agent over HTTP: the chat endpoint, the Gmail
// OAuth flow and liveness probes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ashutoshrp06/parcel-agent/internal/agent"
	"github.com/ashutoshrp06/parcel-agent/internal/validator"
	"github.com/ashutoshrp06/parcel-agent/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stateCookie = "parcel_oauth_state"

// maxBodyBytes bounds /chat request bodies.
const maxBodyBytes = 1 << 20

// Runner answers one query. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, query string, history []models.HistoryEntry, opts ...agent.RunOption) (*agent.Response, error)
}

// Authenticator drives the Gmail consent flow. *gmail.Authenticator
// implements it.
type Authenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) error
	Authenticated() bool
}

// Config configures the HTTP server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Query   string                `json:"query"`
	History []models.HistoryEntry `json:"history,omitempty"`
}

// Server is the HTTP front end.
type Server struct {
	config     Config
	runner     Runner
	auth       Authenticator
	input      *validator.InputValidator
	logger     *zap.Logger
	mux        *http.ServeMux
	httpServer *http.Server
}

// New creates a server. auth may be nil, in which case the OAuth routes
// answer 503.
func New(cfg Config, runner Runner, auth Authenticator, input *validator.InputValidator, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if input == nil {
		input = validator.NewInputValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: cfg,
		runner: runner,
		auth:   auth,
		input:  input,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /auth/google", s.handleAuth)
	s.mux.HandleFunc("GET /auth/google/callback", s.handleAuthCallback)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.withLogging(s.mux)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "parcel agent is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	if s.auth != nil {
		status["gmail_authenticated"] = s.auth.Authenticated()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := s.input.Validate(req.Query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.runner.Run(r.Context(), req.Query, req.History)
	if err != nil {
		s.logger.Error("Chat run failed", zap.Error(err))
		if errors.Is(err, agent.ErrModel) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "gmail is not configured")
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.auth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "gmail is not configured")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}
	if c, err := r.Cookie(stateCookie); err == nil && c.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "OAuth state mismatch")
		return
	}

	if err := s.auth.Exchange(r.Context(), code); err != nil {
		s.logger.Error("Token exchange failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Token exchange failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Gmail authentication successful! You can close this window.",
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
