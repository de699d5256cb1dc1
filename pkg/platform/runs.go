package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is used when ProcessOptions leaves PollInterval unset.
const DefaultPollInterval = time.Second

// ToolExecutor runs function tools the service asks the client to execute.
type ToolExecutor interface {
	ExecuteToolCall(ctx context.Context, call ToolCall) (string, error)
}

// ProcessOptions tunes CreateAndProcessRun.
type ProcessOptions struct {
	PollInterval time.Duration
	// Executor handles requires_action tool calls. Without one, such runs
	// are cancelled.
	Executor ToolExecutor
	// OnStatus is called every time the observed run status changes.
	OnStatus func(*Run)
}

// ErrNoToolExecutor is returned when a run needs local tool outputs but no
// executor was supplied.
var ErrNoToolExecutor = errors.New("run requires tool outputs but no tool executor is configured")

// CreateRun starts an agent run on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID string, params CreateRunParams) (*Run, error) {
	var run Run
	if err := c.post(ctx, join("threads", threadID, "runs"), params, &run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return &run, nil
}

// GetRun retrieves a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	if err := c.get(ctx, join("threads", threadID, "runs", runID), &run); err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &run, nil
}

// CancelRun asks the service to cancel a run.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	if err := c.post(ctx, join("threads", threadID, "runs", runID, "cancel"), nil, &run); err != nil {
		return nil, fmt.Errorf("failed to cancel run %s: %w", runID, err)
	}
	return &run, nil
}

// SubmitToolOutputs answers the pending tool calls of a run.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error) {
	body := map[string]any{"tool_outputs": outputs}
	var run Run
	if err := c.post(ctx, join("threads", threadID, "runs", runID, "submit_tool_outputs"), body, &run); err != nil {
		return nil, fmt.Errorf("failed to submit tool outputs for run %s: %w", runID, err)
	}
	return &run, nil
}

// CreateAndProcessRun starts a run and polls it until it reaches a terminal
// status, executing requested function tools along the way. The returned
// run is the last one observed; ctx cancellation stops polling and makes a
// best-effort cancel of the remote run.
func (c *Client) CreateAndProcessRun(ctx context.Context, threadID string, params CreateRunParams, opts ProcessOptions) (*Run, error) {
	run, err := c.CreateRun(ctx, threadID, params)
	if err != nil {
		return nil, err
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var lastStatus RunStatus
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if run.Status != lastStatus {
			lastStatus = run.Status
			c.logger.Debug("Run status", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))
			if opts.OnStatus != nil {
				opts.OnStatus(run)
			}
		}

		if run.Status.IsTerminal() {
			return run, nil
		}

		if run.Status == RunStatusRequiresAction {
			next, err := c.handleRequiredAction(ctx, threadID, run, opts.Executor)
			if err != nil {
				return run, err
			}
			run = next
			continue
		}

		select {
		case <-ctx.Done():
			c.cancelAbandoned(threadID, run.ID)
			return run, ctx.Err()
		case <-ticker.C:
		}

		next, err := c.GetRun(ctx, threadID, run.ID)
		if err != nil {
			if ctx.Err() != nil {
				c.cancelAbandoned(threadID, run.ID)
				return run, ctx.Err()
			}
			return run, err
		}
		run = next
	}
}

func (c *Client) handleRequiredAction(ctx context.Context, threadID string, run *Run, executor ToolExecutor) (*Run, error) {
	if run.RequiredAction == nil || run.RequiredAction.SubmitToolOutputs == nil {
		return run, fmt.Errorf("run %s requires an unsupported action", run.ID)
	}

	if executor == nil {
		c.logger.Warn("Cancelling run that requires tool outputs", zap.String("run_id", run.ID))
		if _, err := c.CancelRun(ctx, threadID, run.ID); err != nil {
			return run, errors.Join(ErrNoToolExecutor, err)
		}
		return run, ErrNoToolExecutor
	}

	calls := run.RequiredAction.SubmitToolOutputs.ToolCalls
	outputs := make([]ToolOutput, 0, len(calls))
	for _, call := range calls {
		output, err := executor.ExecuteToolCall(ctx, call)
		if err != nil {
			c.logger.Warn("Tool call failed",
				zap.String("tool", call.Function.Name),
				zap.String("call_id", call.ID),
				zap.Error(err))
			output = errorOutput(err)
		}
		outputs = append(outputs, ToolOutput{ToolCallID: call.ID, Output: output})
	}

	return c.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
}

// cancelAbandoned cancels a run whose caller gave up waiting.
func (c *Client) cancelAbandoned(threadID, runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.CancelRun(ctx, threadID, runID); err != nil {
		c.logger.Warn("Failed to cancel abandoned run", zap.String("run_id", runID), zap.Error(err))
	}
}

func errorOutput(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}
