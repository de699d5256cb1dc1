// Package api serves the orchestrator over HTTP: session management bound to
// platform threads, synchronous and streaming task runs, and a WebSocket
// endpoint for interactive use.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/agent-protocol/contoso-agents/pkg/agents"
	"github.com/agent-protocol/contoso-agents/pkg/logging"
	"github.com/agent-protocol/contoso-agents/pkg/sessions"
)

// Runner is the part of the orchestrator the API needs.
type Runner interface {
	Agents() []agents.AgentInfo
	Ready() bool
	NewThread(ctx context.Context) (string, error)
	DeleteThread(ctx context.Context, threadID string) error
	RunTask(ctx context.Context, threadID, request string, opts agents.TaskOptions) agents.TaskResult
}

var _ Runner = (*agents.Orchestrator)(nil)

// ServerConfig contains configuration for the API server
type ServerConfig struct {
	Host         string
	Port         int
	AllowOrigins []string
	// SessionTTL expires idle sessions and deletes their threads. Zero keeps
	// sessions until shutdown.
	SessionTTL time.Duration
	Logger     *zap.Logger
}

// Server represents the HTTP API server
type Server struct {
	config         *ServerConfig
	router         *http.ServeMux
	sessionService sessions.SessionService
	runner         Runner
	upgrader       websocket.Upgrader
	logger         *zap.Logger

	// the platform allows one active run per thread
	threadLocks sync.Map
}

// RunRequest asks the coordinator to handle a task in a session.
type RunRequest struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// CreateSessionRequest is the optional body of a session creation request.
type CreateSessionRequest struct {
	State map[string]any `json:"state,omitempty"`
}

// ListSessionsResponse represents the response for listing sessions
type ListSessionsResponse struct {
	Sessions   []*sessions.Session `json:"sessions"`
	TotalCount int                 `json:"total_count"`
}

// NewServer creates a new API server instance
func NewServer(runner Runner, sessionService sessions.SessionService, config *ServerConfig) (*Server, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if config == nil {
		config = &ServerConfig{}
	}
	if sessionService == nil {
		sessionService = sessions.NewInMemorySessionService()
	}

	s := &Server{
		config:         config,
		sessionService: sessionService,
		runner:         runner,
		logger:         logging.OrNop(config.Logger),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = http.NewServeMux()

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /agents", s.handleListAgents)

	s.router.HandleFunc("POST /run", s.handleRun)
	s.router.HandleFunc("POST /run_sse", s.handleRunSSE)
	s.router.HandleFunc("GET /run_live", s.handleRunLive) // WebSocket endpoint

	s.router.HandleFunc("GET /apps/{app}/users/{user}/sessions", s.handleListSessions)
	s.router.HandleFunc("POST /apps/{app}/users/{user}/sessions", s.handleCreateSession)
	s.router.HandleFunc("POST /apps/{app}/users/{user}/sessions/{session}", s.handleCreateSession)
	s.router.HandleFunc("GET /apps/{app}/users/{user}/sessions/{session}", s.handleGetSession)
	s.router.HandleFunc("DELETE /apps/{app}/users/{user}/sessions/{session}", s.handleDeleteSession)

	s.setupWebRoutes()
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	origins := s.config.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: !containsWildcard(origins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(s.router)
}

// Start serves until ctx is done, then shuts down gracefully and releases
// the threads of remaining sessions.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.config.SessionTTL > 0 {
		janitor := sessions.NewJanitor(s.sessionService, s.config.SessionTTL/2, s.config.SessionTTL, s.releaseThread, s.logger)
		go janitor.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting orchestrator API server", zap.String("address", address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close(shutdownCtx)
	return err
}

// Close removes every session held in memory and deletes their threads.
func (s *Server) Close(ctx context.Context) {
	remaining, err := s.sessionService.Close(ctx)
	if err != nil {
		s.logger.Warn("Failed to close session service", zap.Error(err))
	}
	for _, session := range remaining {
		s.releaseThread(ctx, session)
	}
}

func (s *Server) releaseThread(ctx context.Context, session *sessions.Session) {
	if err := s.runner.DeleteThread(ctx, session.ThreadID); err != nil {
		s.logger.Warn("Failed to delete session thread",
			zap.String("session_id", session.ID),
			zap.String("thread_id", session.ThreadID),
			zap.Error(err))
	}
	s.threadLocks.Delete(session.ThreadID)
}

func (s *Server) threadLock(threadID string) *sync.Mutex {
	mu, _ := s.threadLocks.LoadOrStore(threadID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.config.AllowOrigins) == 0 {
		return true
	}
	for _, allowed := range s.config.AllowOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
