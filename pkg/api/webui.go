package api

import (
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed web/index.html
var webFiles embed.FS

var indexTemplate = template.Must(template.ParseFS(webFiles, "web/index.html"))

// indexData fills the chat page.
type indexData struct {
	Title   string
	AppName string
}

// WebAppName is the app name the chat page creates its sessions under.
const WebAppName = "contoso"

// handleIndex serves a single-page chat client for the coordinator.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, indexData{Title: "Contoso Multi-Agent Coordinator", AppName: WebAppName}); err != nil {
		s.logger.Warn("Failed to render index page", zap.Error(err))
	}
}

// setupWebRoutes adds web UI routes to the server
func (s *Server) setupWebRoutes() {
	s.router.HandleFunc("GET /{$}", s.handleIndex)
}
