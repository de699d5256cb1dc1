package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agent-protocol/contoso-agents/pkg/agents"
	"github.com/agent-protocol/contoso-agents/pkg/platform"
	"github.com/agent-protocol/contoso-agents/pkg/sessions"
)

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"ready":  s.runner.Ready(),
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleListAgents lists the provisioned agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	list := s.runner.Agents()
	if list == nil {
		list = []agents.AgentInfo{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.sessionService.ListSessions(r.Context(), &sessions.ListSessionsRequest{
		AppName: r.PathValue("app"),
		UserID:  r.PathValue("user"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	list := resp.Sessions
	if list == nil {
		list = []*sessions.Session{}
	}
	writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: list, TotalCount: resp.TotalCount})
}

// handleCreateSession creates a platform thread and binds a new session to
// it. The thread is deleted again when the session cannot be stored.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	threadID, err := s.runner.NewThread(r.Context())
	if err != nil {
		s.logger.Error("Failed to create thread", zap.Error(err))
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to create thread: %v", err))
		return
	}

	session, err := s.sessionService.CreateSession(r.Context(), &sessions.CreateSessionRequest{
		AppName:   r.PathValue("app"),
		UserID:    r.PathValue("user"),
		SessionID: r.PathValue("session"),
		ThreadID:  threadID,
		State:     req.State,
	})
	if err != nil {
		if delErr := s.runner.DeleteThread(context.WithoutCancel(r.Context()), threadID); delErr != nil {
			s.logger.Warn("Failed to delete orphaned thread", zap.String("thread_id", threadID), zap.Error(delErr))
		}
		status := http.StatusBadRequest
		if errors.Is(err, sessions.ErrSessionExists) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessionService.GetSession(r.Context(), &sessions.GetSessionRequest{
		AppName:   r.PathValue("app"),
		UserID:    r.PathValue("user"),
		SessionID: r.PathValue("session"),
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessionService.DeleteSession(r.Context(), r.PathValue("app"), r.PathValue("user"), r.PathValue("session"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	s.releaseThread(r.Context(), session)
	w.WriteHeader(http.StatusNoContent)
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, sessions.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// decodeRunRequest reads a run request and loads its session.
func (s *Server) decodeRunRequest(r *http.Request) (*RunRequest, *sessions.Session, int, error) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, http.StatusBadRequest, fmt.Errorf("Invalid request body: %v", err)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, nil, http.StatusBadRequest, errors.New("Message cannot be empty")
	}
	session, err := s.sessionService.GetSession(r.Context(), &sessions.GetSessionRequest{
		AppName:   req.AppName,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Config:    &sessions.GetSessionConfig{IncludeEvents: false},
	})
	if err != nil {
		return nil, nil, http.StatusNotFound, errors.New("Session not found")
	}
	return &req, session, 0, nil
}

// runTask runs one task on the session's thread and records it as two
// session events: the request and the coordinator's answer.
func (s *Server) runTask(ctx context.Context, session *sessions.Session, message string, onStatus func(*platform.Run)) agents.TaskResult {
	mu := s.threadLock(session.ThreadID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.sessionService.AppendEvent(ctx, session, &sessions.Event{Author: "user", Content: message}); err != nil {
		s.logger.Warn("Failed to record request", zap.String("session_id", session.ID), zap.Error(err))
	}

	result := s.runner.RunTask(ctx, session.ThreadID, message, agents.TaskOptions{OnStatus: onStatus})

	author := result.AgentRole
	if author == "" {
		author = agents.RoleCoordinator
	}
	event := &sessions.Event{
		Author:       string(author),
		Content:      result.Content,
		RunID:        result.RunID,
		Status:       string(result.Status),
		Artifacts:    result.Artifacts,
		ErrorMessage: result.Error,
	}
	if err := s.sessionService.AppendEvent(context.WithoutCancel(ctx), session, event); err != nil {
		s.logger.Warn("Failed to record result", zap.String("session_id", session.ID), zap.Error(err))
	}
	return result
}

// handleRun handles synchronous task execution
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, session, status, err := s.decodeRunRequest(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.runTask(r.Context(), session, req.Message, nil))
}

// statusEvent is streamed while a run is in progress.
type statusEvent struct {
	RunID  string             `json:"run_id"`
	Status platform.RunStatus `json:"status"`
}

// handleRunSSE streams run status changes as Server-Sent Events, followed by
// the task result.
func (s *Server) handleRunSSE(w http.ResponseWriter, r *http.Request) {
	req, session, status, err := s.decodeRunRequest(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	send := func(name string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			data = []byte(`{"error":"Failed to encode event"}`)
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	result := s.runTask(r.Context(), session, req.Message, func(run *platform.Run) {
		send("status", statusEvent{RunID: run.ID, Status: run.Status})
	})
	send("result", result)
}

// liveMessage is sent to WebSocket clients.
type liveMessage struct {
	Type   string             `json:"type"`
	Status *statusEvent       `json:"status,omitempty"`
	Result *agents.TaskResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// handleRunLive handles WebSocket connections. Every text frame received is
// run as a task; status updates and the result are sent back as JSON.
func (s *Server) handleRunLive(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	appName := query.Get("app_name")
	userID := query.Get("user_id")
	sessionID := query.Get("session_id")

	if appName == "" || userID == "" || sessionID == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameters: app_name, user_id, session_id")
		return
	}

	session, err := s.sessionService.GetSession(r.Context(), &sessions.GetSessionRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
		Config:    &sessions.GetSessionConfig{IncludeEvents: false},
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	s.handleWebSocketSession(r.Context(), conn, session)
}

// handleWebSocketSession reads tasks until the client disconnects. Tasks run
// one at a time; a disconnect cancels the running one.
func (s *Server) handleWebSocketSession(parent context.Context, conn *websocket.Conn, session *sessions.Session) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()

	messages := make(chan string)
	go func() {
		defer close(messages)
		defer cancel()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Warn("WebSocket error", zap.Error(err))
				}
				return
			}
			if kind != websocket.TextMessage {
				continue
			}
			select {
			case messages <- string(data):
			case <-ctx.Done():
				return
			}
		}
	}()

	for message := range messages {
		if strings.TrimSpace(message) == "" {
			conn.WriteJSON(liveMessage{Type: "error", Error: "Message cannot be empty"})
			continue
		}
		result := s.runTask(ctx, session, message, func(run *platform.Run) {
			conn.WriteJSON(liveMessage{Type: "status", Status: &statusEvent{RunID: run.ID, Status: run.Status}})
		})
		if err := conn.WriteJSON(liveMessage{Type: "result", Result: &result}); err != nil {
			s.logger.Warn("Failed to write WebSocket message", zap.Error(err))
			return
		}
	}
}
