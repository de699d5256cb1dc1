// Package salesapi serves the Contoso sales query surface: a health check,
// a schema description and a literal SQL endpoint over the sales database.
package salesapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agent-protocol/contoso-agents/pkg/logging"
	"github.com/agent-protocol/contoso-agents/pkg/salesdb"
)

// Querier is the part of the sales store the API needs.
type Querier interface {
	ExecuteQuery(ctx context.Context, query string) (*salesdb.QueryResult, error)
	Info(ctx context.Context) (*salesdb.DatabaseInfo, error)
}

var _ Querier = (*salesdb.Store)(nil)

// ServerConfig contains configuration for the sales API server.
type ServerConfig struct {
	Address      string
	PublicURL    string
	AllowOrigins []string
	Logger       *zap.Logger
	// Registry receives the API metrics. A private registry is used when nil.
	Registry *prometheus.Registry
}

// Server is the sales query HTTP server.
type Server struct {
	config  *ServerConfig
	store   Querier
	engine  *gin.Engine
	metrics *Metrics
	logger  *zap.Logger
}

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// NewServer creates the server and its routes.
func NewServer(store Querier, config *ServerConfig) *Server {
	if config == nil {
		config = &ServerConfig{}
	}
	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:  config,
		store:   store,
		engine:  gin.New(),
		metrics: NewMetrics(registry),
		logger:  logging.OrNop(config.Logger),
	}
	s.setupRoutes(registry)
	return s
}

func (s *Server) setupRoutes(registry *prometheus.Registry) {
	e := s.engine
	e.HandleMethodNotAllowed = true

	e.Use(gin.CustomRecovery(s.recoverJSON))
	e.Use(s.requestID())
	e.Use(s.accessLog())
	e.Use(cors.New(s.corsConfig()))

	e.GET("/health", s.handleHealth)
	e.GET("/database-info", s.handleDatabaseInfo)
	e.POST("/query-sales-data", s.handleQuerySalesData)
	e.GET("/openapi.json", s.handleOpenAPI)
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody("Not found"))
	})
	e.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorBody("Method not allowed"))
	})
}

// recoverJSON answers a panicking request with a JSON 500.
func (s *Server) recoverJSON(c *gin.Context, recovered any) {
	s.logger.Error("Request panicked",
		zap.Any("panic", recovered),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString("request_id")))
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(msgInternalError))
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(s.config.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.config.AllowOrigins
	}
	return cfg
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting Contoso Sales API", zap.String("address", s.config.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("sales API server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down Contoso Sales API")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down sales API: %w", err)
		}
		return nil
	}
}
