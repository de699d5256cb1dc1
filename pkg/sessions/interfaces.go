// Package sessions keeps API conversation sessions. Each session is bound to
// one platform thread, so the conversation history itself lives on the
// platform; a session only records the thread and a log of task events.
package sessions

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned for unknown sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when creating a session with a taken ID.
	ErrSessionExists = errors.New("session already exists")
)

// Session is one conversation of a user with the coordinator.
type Session struct {
	ID             string         `json:"id"`
	AppName        string         `json:"app_name"`
	UserID         string         `json:"user_id"`
	ThreadID       string         `json:"thread_id"`
	State          map[string]any `json:"state,omitempty"`
	Events         []*Event       `json:"events,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastUpdateTime time.Time      `json:"last_update_time"`
}

// Event is one entry in a session's task log.
type Event struct {
	ID           string    `json:"id"`
	Author       string    `json:"author"`
	Content      string    `json:"content"`
	RunID        string    `json:"run_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	Artifacts    []string  `json:"artifacts,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// CreateSessionRequest creates a session bound to ThreadID. An empty
// SessionID generates one.
type CreateSessionRequest struct {
	AppName   string
	UserID    string
	SessionID string
	ThreadID  string
	State     map[string]any
}

// GetSessionConfig controls which events GetSession returns.
type GetSessionConfig struct {
	IncludeEvents bool
	// MaxEvents keeps only the newest events when positive.
	MaxEvents int
}

// GetSessionRequest identifies a session.
type GetSessionRequest struct {
	AppName   string
	UserID    string
	SessionID string
	Config    *GetSessionConfig
}

// ListSessionsRequest pages through a user's sessions.
type ListSessionsRequest struct {
	AppName string
	UserID  string
	Offset  int
	// Limit of zero returns all sessions.
	Limit int
}

// ListSessionsResponse is one page of sessions, oldest first.
type ListSessionsResponse struct {
	Sessions   []*Session `json:"sessions"`
	TotalCount int        `json:"total_count"`
	HasMore    bool       `json:"has_more"`
}

// SessionService stores sessions.
type SessionService interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error)
	GetSession(ctx context.Context, req *GetSessionRequest) (*Session, error)
	ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error)
	AppendEvent(ctx context.Context, session *Session, event *Event) error
	DeleteSession(ctx context.Context, appName, userID, sessionID string) (*Session, error)
	// CleanupExpiredSessions removes sessions idle for longer than maxAge
	// and returns them so their threads can be deleted.
	CleanupExpiredSessions(ctx context.Context, maxAge time.Duration) ([]*Session, error)
	// Close removes every session and returns them.
	Close(ctx context.Context) ([]*Session, error)
}
