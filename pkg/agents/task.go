package agents

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/agent-protocol/contoso-agents/pkg/platform"
)

// Messages reported in TaskResult.Content when a task does not complete.
const (
	MsgTimedOut          = "Task timed out - one of the specialist agents took too long to respond"
	MsgNoResponse        = "Error retrieving final response"
	msgUnknownRunError   = "Unknown error"
	errNotInitializedMsg = "agents are not initialized"
)

// ErrNotInitialized is returned when a task is run before InitializeAgents.
var ErrNotInitialized = errors.New(errNotInitializedMsg)

// TaskOptions tunes a single task run.
type TaskOptions struct {
	// OnStatus is called when the coordinator run changes status.
	OnStatus func(*platform.Run)
}

// ExecuteComplexTask sends the request to the coordinator on the default
// thread and returns its final answer or a message describing why there is
// none.
func (o *Orchestrator) ExecuteComplexTask(ctx context.Context, request string) string {
	return o.RunTask(ctx, o.ThreadID(), request, TaskOptions{}).Content
}

// RunTask sends the request to the coordinator on the given thread and waits
// for the run, bounded by the task timeout. Failures are described in the
// result rather than returned.
func (o *Orchestrator) RunTask(ctx context.Context, threadID, request string, opts TaskOptions) TaskResult {
	result := TaskResult{AgentRole: RoleCoordinator}

	o.mu.Lock()
	coordinator := o.coordinator
	o.mu.Unlock()
	if coordinator == nil || threadID == "" {
		return failed(result, ErrNotInitialized, "Error during task execution: "+errNotInitializedMsg)
	}

	o.progress("Processing complex task: %s", request)

	if _, err := o.platform.CreateMessage(ctx, threadID, platform.CreateMessageParams{
		Role:    platform.RoleUser,
		Content: request,
	}); err != nil {
		return failed(result, err, "Error during task execution: "+err.Error())
	}

	o.progress("Coordinator is orchestrating specialist agents...")

	runCtx, cancel := context.WithTimeout(ctx, o.opts.TaskTimeout)
	defer cancel()

	var executor platform.ToolExecutor
	o.mu.Lock()
	if o.executor.HasFunctions() {
		executor = o.executor
	}
	o.mu.Unlock()

	run, err := o.platform.CreateAndProcessRun(runCtx, threadID, platform.CreateRunParams{AgentID: coordinator.ID}, platform.ProcessOptions{
		PollInterval: o.opts.PollInterval,
		Executor:     executor,
		OnStatus:     opts.OnStatus,
	})
	if run != nil {
		result.RunID = run.ID
		result.Status = run.Status
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			o.logger.Warn("Task timed out", zap.Duration("timeout", o.opts.TaskTimeout))
			return failed(result, err, MsgTimedOut)
		}
		o.logger.Error("Error during task execution", zap.Error(err))
		return failed(result, err, "Error during task execution: "+err.Error())
	}

	switch run.Status {
	case platform.RunStatusCompleted:
		o.progress("Task completed successfully")
		return o.collectResponse(ctx, threadID, run, result)
	case platform.RunStatusFailed:
		msg := msgUnknownRunError
		if run.LastError != nil {
			msg = run.LastError.Error()
		}
		return failed(result, errors.New(msg), "Task failed: "+msg)
	case platform.RunStatusCancelled, platform.RunStatusExpired:
		msg := fmt.Sprintf("Task was %s", run.Status)
		return failed(result, errors.New(msg), msg)
	default:
		msg := fmt.Sprintf("Task ended with status: %s", run.Status)
		return failed(result, errors.New(msg), msg)
	}
}

// collectResponse takes the newest agent text message of the thread as the
// answer. Files referenced by agent messages of this run become artifacts.
// Only messages back to the run's start are fetched.
func (o *Orchestrator) collectResponse(ctx context.Context, threadID string, run *platform.Run, result TaskResult) TaskResult {
	messages, err := o.platform.ListMessages(ctx, threadID, run.CreatedAt)
	if err != nil {
		o.logger.Error("Error retrieving messages", zap.Error(err))
		return failed(result, err, MsgNoResponse)
	}
	o.logger.Debug("Retrieved thread messages", zap.Int("count", len(messages)))

	result.Success = true
	found := false
	for i := range messages {
		msg := &messages[i]
		if msg.Role != platform.RoleAgent {
			continue
		}
		if msg.RunID == "" || msg.RunID == run.ID {
			result.Artifacts = append(result.Artifacts, msg.FileIDs()...)
		}
		if found {
			continue
		}
		if text, ok := msg.Text(); ok {
			result.Content = text
			found = true
		}
	}
	return result
}

func failed(result TaskResult, err error, content string) TaskResult {
	result.Success = false
	result.Content = content
	result.Error = err.Error()
	return result
}
