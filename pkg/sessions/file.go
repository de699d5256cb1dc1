package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ SessionService = (*FileSessionService)(nil)

// FileSessionService implements SessionService with one JSON file per
// session, so thread bindings survive a restart of the API server.
type FileSessionService struct {
	baseDir string
	mutex   sync.RWMutex
	now     func() time.Time
}

// NewFileSessionService creates a file-based session service rooted at baseDir.
func NewFileSessionService(baseDir string) (*FileSessionService, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileSessionService{baseDir: baseDir, now: time.Now}, nil
}

// CreateSession creates a new session.
func (f *FileSessionService) CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	if req.ThreadID == "" {
		return nil, fmt.Errorf("thread ID is required")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	path, err := f.sessionPath(req.AppName, req.UserID, sessionID)
	if err != nil {
		return nil, err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}

	now := f.now()
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

	if err := f.saveSession(path, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession retrieves a session by ID.
func (f *FileSessionService) GetSession(ctx context.Context, req *GetSessionRequest) (*Session, error) {
	path, err := f.sessionPath(req.AppName, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}

	f.mutex.RLock()
	defer f.mutex.RUnlock()

	session, err := loadSession(path)
	if err != nil {
		return nil, err
	}
	if req.Config != nil {
		if !req.Config.IncludeEvents {
			session.Events = nil
		} else if req.Config.MaxEvents > 0 && len(session.Events) > req.Config.MaxEvents {
			session.Events = session.Events[len(session.Events)-req.Config.MaxEvents:]
		}
	}
	return session, nil
}

// ListSessions returns a user's sessions without events, oldest first.
func (f *FileSessionService) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	dir, err := f.userDir(req.AppName, req.UserID)
	if err != nil {
		return nil, err
	}

	f.mutex.RLock()
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.mutex.RUnlock()
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var sessions []*Session
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		session, err := loadSession(filepath.Join(dir, e.Name()))
		if err != nil {
			f.mutex.RUnlock()
			return nil, err
		}
		session.Events = nil
		sessions = append(sessions, session)
	}
	f.mutex.RUnlock()

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
func (f *FileSessionService) AppendEvent(ctx context.Context, session *Session, event *Event) error {
	path, err := f.sessionPath(session.AppName, session.UserID, session.ID)
	if err != nil {
		return err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	stored, err := loadSession(path)
	if err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = f.now()
	}
	stored.Events = append(stored.Events, event)
	stored.LastUpdateTime = f.now()

	if err := f.saveSession(path, stored); err != nil {
		return err
	}
	*session = *stored
	return nil
}

// DeleteSession removes a session and returns it.
func (f *FileSessionService) DeleteSession(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	path, err := f.sessionPath(appName, userID, sessionID)
	if err != nil {
		return nil, err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	session, err := loadSession(path)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return session, nil
}

// CleanupExpiredSessions removes sessions that haven't been updated within maxAge.
func (f *FileSessionService) CleanupExpiredSessions(ctx context.Context, maxAge time.Duration) ([]*Session, error) {
	cutoff := f.now().Add(-maxAge)
	return f.removeWhere(func(s *Session) bool { return s.LastUpdateTime.Before(cutoff) })
}

// Close releases nothing and returns no sessions: file sessions outlive the
// process.
func (f *FileSessionService) Close(ctx context.Context) ([]*Session, error) {
	return nil, nil
}

// removeWhere deletes matching sessions. Files that cannot be read or
// removed are skipped; their errors are joined and returned with the
// sessions that were removed.
func (f *FileSessionService) removeWhere(match func(*Session) bool) ([]*Session, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	var (
		removed []*Session
		errs    []error
	)
	err := filepath.WalkDir(f.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != f.baseDir {
				errs = append(errs, err)
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		session, err := loadSession(path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if !match(session) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete session %s: %w", session.ID, err))
			return nil
		}
		removed = append(removed, session)
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("failed to sweep sessions: %w", errors.Join(errs...))
	}
	return removed, nil
}

func (f *FileSessionService) userDir(appName, userID string) (string, error) {
	for _, part := range []string{appName, userID} {
		if err := validPathPart(part); err != nil {
			return "", err
		}
	}
	return filepath.Join(f.baseDir, appName, userID), nil
}

func (f *FileSessionService) sessionPath(appName, userID, sessionID string) (string, error) {
	dir, err := f.userDir(appName, userID)
	if err != nil {
		return "", err
	}
	if err := validPathPart(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(dir, sessionID+".json"), nil
}

func validPathPart(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("invalid session path component %q", s)
	}
	return nil
}

func (f *FileSessionService) saveSession(path string, session *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func loadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, strings.TrimSuffix(filepath.Base(path), ".json"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", path, err)
	}
	if session.Events == nil {
		session.Events = make([]*Event, 0)
	}
	return &session, nil
}
