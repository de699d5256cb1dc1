package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ SessionService = (*InMemorySessionService)(nil)

// InMemorySessionService implements SessionService using in-memory storage.
type InMemorySessionService struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
	now      func() time.Time
}

// NewInMemorySessionService creates a new in-memory session service.
func NewInMemorySessionService() *InMemorySessionService {
	return &InMemorySessionService{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// CreateSession creates a new session.
func (s *InMemorySessionService) CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	if req.AppName == "" || req.UserID == "" {
		return nil, fmt.Errorf("app name and user ID are required")
	}
	if req.ThreadID == "" {
		return nil, fmt.Errorf("thread ID is required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	key := s.sessionKey(req.AppName, req.UserID, sessionID)
	if _, exists := s.sessions[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}

	now := s.now()
	session := &Session{
		ID:             sessionID,
		AppName:        req.AppName,
		UserID:         req.UserID,
		ThreadID:       req.ThreadID,
		State:          copyMap(req.State),
		Events:         make([]*Event, 0),
		CreatedAt:      now,
		LastUpdateTime: now,
	}
	if session.State == nil {
		session.State = make(map[string]any)
	}

	s.sessions[key] = session
	return session.clone(true), nil
}

// GetSession retrieves a copy of a session.
func (s *InMemorySessionService) GetSession(ctx context.Context, req *GetSessionRequest) (*Session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, exists := s.sessions[s.sessionKey(req.AppName, req.UserID, req.SessionID)]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
	}

	includeEvents := req.Config == nil || req.Config.IncludeEvents
	sessionCopy := session.clone(includeEvents)
	if includeEvents && req.Config != nil && req.Config.MaxEvents > 0 && len(sessionCopy.Events) > req.Config.MaxEvents {
		// Keep only the last N events
		sessionCopy.Events = sessionCopy.Events[len(sessionCopy.Events)-req.Config.MaxEvents:]
	}
	return sessionCopy, nil
}

// ListSessions returns a user's sessions without events, oldest first.
func (s *InMemorySessionService) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	s.mutex.RLock()
	var sessions []*Session
	for _, session := range s.sessions {
		if session.AppName == req.AppName && session.UserID == req.UserID {
			sessions = append(sessions, session.clone(false))
		}
	}
	s.mutex.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	totalCount := len(sessions)
	start := min(max(req.Offset, 0), totalCount)
	end := totalCount
	if req.Limit > 0 {
		end = min(start+req.Limit, totalCount)
	}

	return &ListSessionsResponse{
		Sessions:   sessions[start:end],
		TotalCount: totalCount,
		HasMore:    end < totalCount,
	}, nil
}

// AppendEvent adds an event to a session and refreshes the caller's copy.
func (s *InMemorySessionService) AppendEvent(ctx context.Context, session *Session, event *Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored, exists := s.sessions[s.sessionKey(session.AppName, session.UserID, session.ID)]
	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID)
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	stored.Events = append(stored.Events, event)
	stored.LastUpdateTime = s.now()

	*session = *stored.clone(true)
	return nil
}

// DeleteSession removes a session and returns it.
func (s *InMemorySessionService) DeleteSession(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := s.sessionKey(appName, userID, sessionID)
	session, exists := s.sessions[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(s.sessions, key)
	return session, nil
}

// CleanupExpiredSessions removes sessions that haven't been updated within maxAge.
func (s *InMemorySessionService) CleanupExpiredSessions(ctx context.Context, maxAge time.Duration) ([]*Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := s.now().Add(-maxAge)
	var expired []*Session
	for key, session := range s.sessions {
		if session.LastUpdateTime.Before(cutoff) {
			delete(s.sessions, key)
			expired = append(expired, session)
		}
	}
	return expired, nil
}

// Close removes all sessions.
func (s *InMemorySessionService) Close(ctx context.Context) ([]*Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	all := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		all = append(all, session)
	}
	s.sessions = make(map[string]*Session)
	return all, nil
}

// sessionKey creates a unique key for session storage.
func (s *InMemorySessionService) sessionKey(appName, userID, sessionID string) string {
	return fmt.Sprintf("%s:%s:%s", appName, userID, sessionID)
}

func (s *Session) clone(includeEvents bool) *Session {
	c := *s
	c.State = copyMap(s.State)
	c.Events = nil
	if includeEvents {
		c.Events = make([]*Event, len(s.Events))
		copy(c.Events, s.Events)
	}
	return &c
}

// generateSessionID creates a unique session identifier.
func generateSessionID() string {
	return "session_" + uuid.NewString()
}

// copyMap creates a shallow copy of a map.
func copyMap(original map[string]any) map[string]any {
	if original == nil {
		return nil
	}

	copied := make(map[string]any, len(original))
	for k, v := range original {
		copied[k] = v
	}
	return copied
}
