package tools

import (
	"context"
	"fmt"

	"github.com/agent-protocol/contoso-agents/pkg/platform"
)

// ToolSet collects the tools of one agent. It renders their definitions and
// resources for agent creation and executes function calls by name.
type ToolSet struct {
	tools     []Tool
	names     map[string]bool
	functions map[string]*FunctionTool
}

var _ platform.ToolExecutor = (*ToolSet)(nil)

// NewToolSet creates a tool set from tools.
func NewToolSet(tools ...Tool) (*ToolSet, error) {
	ts := &ToolSet{
		names:     make(map[string]bool),
		functions: make(map[string]*FunctionTool),
	}
	if err := ts.Add(tools...); err != nil {
		return nil, err
	}
	return ts, nil
}

// Add appends tools. Names must be unique within the set.
func (ts *ToolSet) Add(tools ...Tool) error {
	for _, t := range tools {
		if ts.names[t.Name()] {
			return fmt.Errorf("tool %q is already in the tool set", t.Name())
		}
		ts.names[t.Name()] = true
		ts.tools = append(ts.tools, t)
		if fn, ok := t.(*FunctionTool); ok {
			ts.functions[fn.Name()] = fn
		}
	}
	return nil
}

// Tools returns the tools in insertion order.
func (ts *ToolSet) Tools() []Tool {
	return ts.tools
}

// Len returns the number of tools.
func (ts *ToolSet) Len() int {
	return len(ts.tools)
}

// HasFunctions reports whether any tool must be executed locally.
func (ts *ToolSet) HasFunctions() bool {
	return len(ts.functions) > 0
}

// Definitions returns the tools list for agent creation.
func (ts *ToolSet) Definitions() []platform.ToolDefinition {
	defs := make([]platform.ToolDefinition, 0, len(ts.tools))
	for _, t := range ts.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Resources merges the resources of every tool, or returns nil when none
// has any.
func (ts *ToolSet) Resources() *platform.ToolResources {
	merged := &platform.ToolResources{}
	for _, t := range ts.tools {
		r := t.Resources()
		if r == nil {
			continue
		}
		if r.CodeInterpreter != nil {
			if merged.CodeInterpreter == nil {
				merged.CodeInterpreter = &platform.CodeInterpreterResource{}
			}
			merged.CodeInterpreter.FileIDs = append(merged.CodeInterpreter.FileIDs, r.CodeInterpreter.FileIDs...)
		}
		if r.FileSearch != nil {
			if merged.FileSearch == nil {
				merged.FileSearch = &platform.FileSearchResource{}
			}
			merged.FileSearch.VectorStoreIDs = append(merged.FileSearch.VectorStoreIDs, r.FileSearch.VectorStoreIDs...)
		}
	}
	if merged.IsEmpty() {
		return nil
	}
	return merged
}

// ExecuteToolCall runs the function tool named by the call.
func (ts *ToolSet) ExecuteToolCall(ctx context.Context, call platform.ToolCall) (string, error) {
	fn, ok := ts.functions[call.Function.Name]
	if !ok {
		return "", fmt.Errorf("unknown function tool %q", call.Function.Name)
	}
	return fn.Call(ctx, call.Function.Arguments)
}
