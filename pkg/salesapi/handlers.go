package salesapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agent-protocol/contoso-agents/pkg/salesdb"
)

// Error messages returned to API callers.
const (
	msgInvalidJSON   = "Invalid JSON in request body"
	msgMissingQuery  = "Missing 'query' field in request body"
	msgEmptyQuery    = "Query cannot be empty"
	msgQueryNotText  = "'query' must be a string"
	msgNoDatabase    = "Database not available"
	msgNoInfo        = "Database info not available"
	msgInternalError = "Internal server error"
	healthyMessage   = "Contoso Sales API is running"
	statusHealthy    = "healthy"
)

// QueryRequest is the body of POST /query-sales-data.
type QueryRequest struct {
	Query string `json:"query"`
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}

// storeErrorMessage converts store errors into the message the agents see.
func storeErrorMessage(err error) string {
	switch {
	case errors.Is(err, salesdb.ErrDatabaseUnavailable):
		return msgNoDatabase
	case errors.Is(err, salesdb.ErrEmptyQuery):
		return msgEmptyQuery
	default:
		return err.Error()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  statusHealthy,
		"message": healthyMessage,
	})
}

func (s *Server) handleDatabaseInfo(c *gin.Context) {
	s.metrics.InfoRequests.Inc()

	info, err := s.store.Info(c.Request.Context())
	if err != nil {
		s.logger.Error("Database info error", zap.Error(err))
		c.IndentedJSON(http.StatusOK, errorBody(storeErrorMessage(err)))
		return
	}
	if info == nil {
		c.IndentedJSON(http.StatusInternalServerError, errorBody(msgNoInfo))
		return
	}
	c.IndentedJSON(http.StatusOK, info)
}

func (s *Server) handleQuerySalesData(c *gin.Context) {
	query, msg := parseQueryRequest(c.Request)
	if msg != "" {
		s.metrics.QueriesTotal.WithLabelValues(outcomeRejected).Inc()
		c.JSON(http.StatusBadRequest, errorBody(msg))
		return
	}

	start := time.Now()
	result, err := s.store.ExecuteQuery(c.Request.Context(), query)
	s.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.QueriesTotal.WithLabelValues(outcomeError).Inc()
		s.logger.Warn("Query failed", zap.Error(err), zap.String("request_id", c.GetString("request_id")))
		c.IndentedJSON(http.StatusOK, errorBody(storeErrorMessage(err)))
		return
	}

	s.metrics.QueriesTotal.WithLabelValues(outcomeOK).Inc()
	c.IndentedJSON(http.StatusOK, result)
}

// parseQueryRequest extracts the query, or returns the 400 message.
func parseQueryRequest(r *http.Request) (string, string) {
	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", msgInvalidJSON
	}

	obj, ok := body.(map[string]any)
	if !ok || len(obj) == 0 {
		return "", msgMissingQuery
	}
	raw, ok := obj["query"]
	if !ok {
		return "", msgMissingQuery
	}
	if raw == nil {
		return "", msgEmptyQuery
	}
	query, ok := raw.(string)
	if !ok {
		return "", msgQueryNotText
	}
	if strings.TrimSpace(query) == "" {
		return "", msgEmptyQuery
	}
	return query, ""
}

func (s *Server) handleOpenAPI(c *gin.Context) {
	endpoint := s.config.PublicURL
	if endpoint == "" {
		endpoint = "http://" + c.Request.Host
	}
	spec, err := OpenAPISpec(endpoint)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, spec)
}
