package platform

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService is an in-memory stand-in for the hosted agent REST API.
type fakeService struct {
	t *testing.T

	mu           sync.Mutex
	nextID       int
	agents       map[string]CreateAgentParams
	threads      map[string][]Message
	runs         map[string]*Run
	script       []Run // statuses returned by successive GETs of a run
	submitted    [][]ToolOutput
	cancelled    []string
	files        map[string]string
	vectorStores map[string]*VectorStore
	vsPolls      int
	lastAuth     string
	apiVersions  []string
	clock        int64 // created_at of the next message
	messageGets  int
}

func newFakeService(t *testing.T) (*fakeService, *Client) {
	t.Helper()
	return newFakeServiceWithKey(t, "test-token")
}

func newFakeServiceWithKey(t *testing.T, apiKey string) (*fakeService, *Client) {
	t.Helper()
	f := &fakeService{
		t:            t,
		agents:       make(map[string]CreateAgentParams),
		threads:      make(map[string][]Message),
		runs:         make(map[string]*Run),
		files:        make(map[string]string),
		vectorStores: make(map[string]*VectorStore),
	}

	srv := httptest.NewServer(f.routes())
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		Endpoint:       srv.URL + "/api/projects/workshop",
		APIKey:         apiKey,
		MaxRetries:     0,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return f, client
}

func (f *fakeService) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakeService) routes() http.Handler {
	mux := http.NewServeMux()
	const base = "/api/projects/workshop/"

	mux.HandleFunc("POST "+base+"assistants", func(w http.ResponseWriter, r *http.Request) {
		var p CreateAgentParams
		f.decode(r, &p)
		f.mu.Lock()
		id := f.id("asst")
		f.agents[id] = p
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, Agent{ID: id, Name: p.Name, Model: p.Model, Instructions: p.Instructions, Tools: p.Tools, ToolResources: p.ToolResources})
	})
	mux.HandleFunc("GET "+base+"assistants/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		p, ok := f.agents[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": "not_found", "message": "No assistant found"}})
			return
		}
		writeJSON(w, http.StatusOK, Agent{ID: r.PathValue("id"), Name: p.Name, Model: p.Model})
	})
	mux.HandleFunc("DELETE "+base+"assistants/{id}", f.deleteFrom(func(id string) bool {
		_, ok := f.agents[id]
		delete(f.agents, id)
		return ok
	}))

	mux.HandleFunc("POST "+base+"threads", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		id := f.id("thread")
		f.threads[id] = nil
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, Thread{ID: id})
	})
	mux.HandleFunc("DELETE "+base+"threads/{id}", f.deleteFrom(func(id string) bool {
		_, ok := f.threads[id]
		delete(f.threads, id)
		return ok
	}))

	mux.HandleFunc("POST "+base+"threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var p CreateMessageParams
		f.decode(r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		threadID := r.PathValue("id")
		f.clock++
		msg := Message{
			ID:        f.id("msg"),
			ThreadID:  threadID,
			Role:      p.Role,
			Content:   []MessageContent{{Type: "text", Text: &MessageText{Value: p.Content}}},
			CreatedAt: f.clock,
		}
		// newest first
		f.threads[threadID] = append([]Message{msg}, f.threads[threadID]...)
		writeJSON(w, http.StatusOK, msg)
	})
	mux.HandleFunc("GET "+base+"threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.messageGets++
		msgs := f.threads[r.PathValue("id")]
		after := r.URL.Query().Get("after")
		start := 0
		if after != "" {
			for i, m := range msgs {
				if m.ID == after {
					start = i + 1
				}
			}
		}
		// pages of two to exercise the cursor
		end := start + 2
		if end > len(msgs) {
			end = len(msgs)
		}
		page := msgs[start:end]
		list := MessageList{Data: page, HasMore: end < len(msgs)}
		if len(page) > 0 {
			list.FirstID = page[0].ID
			list.LastID = page[len(page)-1].ID
		}
		writeJSON(w, http.StatusOK, list)
	})

	mux.HandleFunc("POST "+base+"threads/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		var p CreateRunParams
		f.decode(r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		run := &Run{ID: f.id("run"), ThreadID: r.PathValue("id"), AgentID: p.AgentID, Status: RunStatusQueued}
		f.runs[run.ID] = run
		writeJSON(w, http.StatusOK, run)
	})
	mux.HandleFunc("GET "+base+"threads/{id}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		run := f.runs[r.PathValue("run")]
		if len(f.script) > 0 {
			next := f.script[0]
			f.script = f.script[1:]
			run.Status = next.Status
			run.LastError = next.LastError
			run.RequiredAction = next.RequiredAction
		}
		writeJSON(w, http.StatusOK, run)
	})
	mux.HandleFunc("POST "+base+"threads/{id}/runs/{run}/cancel", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		run := f.runs[r.PathValue("run")]
		run.Status = RunStatusCancelling
		f.cancelled = append(f.cancelled, run.ID)
		writeJSON(w, http.StatusOK, run)
	})
	mux.HandleFunc("POST "+base+"threads/{id}/runs/{run}/submit_tool_outputs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ToolOutputs []ToolOutput `json:"tool_outputs"`
		}
		f.decode(r, &body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.submitted = append(f.submitted, body.ToolOutputs)
		run := f.runs[r.PathValue("run")]
		run.Status = RunStatusInProgress
		run.RequiredAction = nil
		writeJSON(w, http.StatusOK, run)
	})

	mux.HandleFunc("POST "+base+"files", func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(f.t, r.ParseMultipartForm(1<<20)) {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if !assert.NoError(f.t, err) {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		f.mu.Lock()
		id := f.id("file")
		f.files[id] = string(data)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         id,
			"object":     "file",
			"bytes":      len(data),
			"created_at": 1700000000,
			"filename":   header.Filename,
			"purpose":    r.FormValue("purpose"),
			"status":     "processed",
		})
	})
	mux.HandleFunc("DELETE "+base+"files/{id}", f.deleteFrom(func(id string) bool {
		_, ok := f.files[id]
		delete(f.files, id)
		return ok
	}))

	mux.HandleFunc("POST "+base+"vector_stores", func(w http.ResponseWriter, r *http.Request) {
		var p CreateVectorStoreParams
		f.decode(r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		vs := &VectorStore{ID: f.id("vs"), Name: p.Name, Status: VectorStoreInProgress,
			FileCounts: VectorStoreCounts{InProgress: len(p.FileIDs), Total: len(p.FileIDs)}}
		f.vectorStores[vs.ID] = vs
		writeJSON(w, http.StatusOK, vs)
	})
	mux.HandleFunc("GET "+base+"vector_stores/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		vs := f.vectorStores[r.PathValue("id")]
		f.vsPolls++
		vs.Status = VectorStoreCompleted
		vs.FileCounts.Completed, vs.FileCounts.InProgress = vs.FileCounts.Total, 0
		writeJSON(w, http.StatusOK, vs)
	})
	mux.HandleFunc("DELETE "+base+"vector_stores/{id}", f.deleteFrom(func(id string) bool {
		_, ok := f.vectorStores[id]
		delete(f.vectorStores, id)
		return ok
	}))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		f.apiVersions = append(f.apiVersions, r.URL.Query().Get("api-version"))
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func (f *fakeService) deleteFrom(remove func(id string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		ok := remove(r.PathValue("id"))
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": "not_found", "message": "not found"}})
			return
		}
		writeJSON(w, http.StatusOK, DeletionStatus{ID: r.PathValue("id"), Deleted: true})
	}
}

// locked runs fn while holding the fake's lock so tests can inspect state.
func (f *fakeService) locked(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func (f *fakeService) decode(r *http.Request, v any) {
	assert.NoError(f.t, json.NewDecoder(r.Body).Decode(v))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
