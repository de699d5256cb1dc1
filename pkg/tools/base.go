// Package tools builds the tool definitions attached to hosted agents and
// executes the function tools the service hands back to the client.
package tools

import (
	"github.com/agent-protocol/contoso-agents/pkg/platform"
)

// Tool is anything that can be attached to a hosted agent.
type Tool interface {
	Name() string
	Description() string
	// Definition is the entry sent in the agent's tools list.
	Definition() platform.ToolDefinition
	// Resources returns the tool_resources the tool needs, or nil.
	Resources() *platform.ToolResources
}

// BaseTool holds the fields shared by every tool.
type BaseTool struct {
	name        string
	description string
}

// NewBaseTool creates a new base tool.
func NewBaseTool(name, description string) BaseTool {
	return BaseTool{name: name, description: description}
}

// Name returns the tool's unique identifier.
func (t BaseTool) Name() string {
	return t.name
}

// Description returns a description of the tool's purpose.
func (t BaseTool) Description() string {
	return t.description
}

// Resources returns nil; tools that carry resources override it.
func (t BaseTool) Resources() *platform.ToolResources {
	return nil
}
