package tools

import (
	"github.com/agent-protocol/contoso-agents/pkg/platform"
)

// ConnectedAgentTool lets one hosted agent call another as a tool. The
// service runs the sub-agent; nothing is executed locally.
type ConnectedAgentTool struct {
	BaseTool
	agentID string
}

// NewConnectedAgentTool wraps the agent with the given ID. The name is what
// the calling agent sees in its tool list.
func NewConnectedAgentTool(agentID, name, description string) *ConnectedAgentTool {
	return &ConnectedAgentTool{
		BaseTool: NewBaseTool(name, description),
		agentID:  agentID,
	}
}

// AgentID returns the ID of the wrapped agent.
func (t *ConnectedAgentTool) AgentID() string {
	return t.agentID
}

// Definition implements Tool.
func (t *ConnectedAgentTool) Definition() platform.ToolDefinition {
	return platform.ToolDefinition{
		Type: platform.ToolTypeConnectedAgent,
		ConnectedAgent: &platform.ConnectedAgentDefinition{
			ID:          t.agentID,
			Name:        t.name,
			Description: t.description,
		},
	}
}
