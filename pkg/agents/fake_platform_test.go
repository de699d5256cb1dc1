package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agent-protocol/contoso-agents/pkg/platform"
)

// fakePlatform records what the orchestrator creates and deletes.
type fakePlatform struct {
	mu      sync.Mutex
	nextID  int
	agents  map[string]platform.CreateAgentParams
	threads map[string][]platform.Message
	files   map[string]string
	stores  map[string]platform.CreateVectorStoreParams
	deleted []string

	failAgent string // agent name whose creation fails
	runResult func(ctx context.Context, threadID string, opts platform.ProcessOptions) (*platform.Run, error)
	reply     platform.Message
	listErr   error
	deleteErr error
	runParams []platform.CreateRunParams
	executors []platform.ToolExecutor
	listSince []int64

	// toolCalls are requested by a run before it completes. Like the hosted
	// service, only function tools declared on the run's own agent are sent
	// back for local execution.
	toolCalls   []platform.ToolCall
	toolOutputs map[string]string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		agents:  make(map[string]platform.CreateAgentParams),
		threads: make(map[string][]platform.Message),
		files:   make(map[string]string),
		stores:  make(map[string]platform.CreateVectorStoreParams),
	}
}

func (f *fakePlatform) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakePlatform) CreateAgent(_ context.Context, params platform.CreateAgentParams) (*platform.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if params.Name == f.failAgent {
		return nil, fmt.Errorf("quota exceeded for %s", params.Name)
	}
	id := f.id("asst")
	f.agents[id] = params
	return &platform.Agent{ID: id, Name: params.Name, Model: params.Model, Tools: params.Tools}, nil
}

func (f *fakePlatform) DeleteAgent(_ context.Context, agentID string) error {
	return f.remove("agent", agentID, func() bool {
		_, ok := f.agents[agentID]
		delete(f.agents, agentID)
		return ok
	})
}

func (f *fakePlatform) CreateThread(context.Context) (*platform.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("thread")
	f.threads[id] = nil
	return &platform.Thread{ID: id}, nil
}

func (f *fakePlatform) DeleteThread(_ context.Context, threadID string) error {
	return f.remove("thread", threadID, func() bool {
		_, ok := f.threads[threadID]
		delete(f.threads, threadID)
		return ok
	})
}

func (f *fakePlatform) CreateMessage(_ context.Context, threadID string, params platform.CreateMessageParams) (*platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.threads[threadID]; !ok {
		return nil, &platform.APIError{Op: "POST messages", StatusCode: 404, Message: "thread not found"}
	}
	msg := platform.Message{
		ID:       f.id("msg"),
		ThreadID: threadID,
		Role:     params.Role,
		Content:  []platform.MessageContent{{Type: "text", Text: &platform.MessageText{Value: params.Content}}},
	}
	f.threads[threadID] = append([]platform.Message{msg}, f.threads[threadID]...)
	return &msg, nil
}

func (f *fakePlatform) ListMessages(_ context.Context, threadID string, since int64) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listSince = append(f.listSince, since)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]platform.Message(nil), f.threads[threadID]...), nil
}

func (f *fakePlatform) CreateAndProcessRun(ctx context.Context, threadID string, params platform.CreateRunParams, opts platform.ProcessOptions) (*platform.Run, error) {
	f.mu.Lock()
	f.runParams = append(f.runParams, params)
	f.executors = append(f.executors, opts.Executor)
	runResult := f.runResult
	f.mu.Unlock()

	if runResult != nil {
		return runResult(ctx, threadID, opts)
	}

	run := &platform.Run{ID: "run_1", ThreadID: threadID, AgentID: params.AgentID, Status: platform.RunStatusCompleted, CreatedAt: 1700000000}
	if err := f.requireAction(ctx, run, opts.Executor); err != nil {
		return run, err
	}
	if run.Status != platform.RunStatusCompleted {
		return run, nil
	}
	f.mu.Lock()
	reply := f.reply
	reply.ThreadID = threadID
	reply.RunID = run.ID
	if reply.Role != "" {
		f.threads[threadID] = append([]platform.Message{reply}, f.threads[threadID]...)
	}
	f.mu.Unlock()
	if opts.OnStatus != nil {
		opts.OnStatus(run)
	}
	return run, nil
}

// requireAction plays the requires_action round trip for the configured
// tool calls.
func (f *fakePlatform) requireAction(ctx context.Context, run *platform.Run, executor platform.ToolExecutor) error {
	f.mu.Lock()
	calls := f.toolCalls
	declared := make(map[string]bool)
	for _, tool := range f.agents[run.AgentID].Tools {
		if tool.Function != nil {
			declared[tool.Function.Name] = true
		}
	}
	f.mu.Unlock()

	for _, call := range calls {
		if !declared[call.Function.Name] {
			continue
		}
		if executor == nil {
			run.Status = platform.RunStatusFailed
			run.LastError = &platform.RunError{Code: "tool_error", Message: "no tool outputs submitted"}
			return nil
		}
		out, err := executor.ExecuteToolCall(ctx, call)
		if err != nil {
			return err
		}
		f.mu.Lock()
		if f.toolOutputs == nil {
			f.toolOutputs = make(map[string]string)
		}
		f.toolOutputs[call.ID] = out
		f.mu.Unlock()
	}
	return nil
}

func (f *fakePlatform) UploadFile(_ context.Context, path string) (*platform.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("file")
	f.files[id] = path
	return &platform.File{ID: id, Filename: path}, nil
}

func (f *fakePlatform) DeleteFile(_ context.Context, fileID string) error {
	return f.remove("file", fileID, func() bool {
		_, ok := f.files[fileID]
		delete(f.files, fileID)
		return ok
	})
}

func (f *fakePlatform) CreateVectorStore(_ context.Context, params platform.CreateVectorStoreParams, _ time.Duration) (*platform.VectorStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("vs")
	f.stores[id] = params
	return &platform.VectorStore{ID: id, Name: params.Name, Status: platform.VectorStoreCompleted}, nil
}

func (f *fakePlatform) DeleteVectorStore(_ context.Context, id string) error {
	return f.remove("vector_store", id, func() bool {
		_, ok := f.stores[id]
		delete(f.stores, id)
		return ok
	})
}

func (f *fakePlatform) remove(kind, id string, fn func() bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if !fn() {
		return &platform.APIError{Op: "DELETE " + kind, StatusCode: 404, Message: "not found"}
	}
	f.deleted = append(f.deleted, kind+":"+id)
	return nil
}

// agentByName returns the creation params of the named agent.
func (f *fakePlatform) agentByName(name string) (string, platform.CreateAgentParams, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.agents {
		if p.Name == name {
			return id, p, true
		}
	}
	return "", platform.CreateAgentParams{}, false
}
