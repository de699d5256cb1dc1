package platform

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CreateAgent creates a hosted agent.
func (c *Client) CreateAgent(ctx context.Context, params CreateAgentParams) (*Agent, error) {
	if params.Model == "" {
		return nil, fmt.Errorf("model is required to create agent %q", params.Name)
	}

	var agent Agent
	if err := c.post(ctx, "assistants", params, &agent); err != nil {
		return nil, fmt.Errorf("failed to create agent %q: %w", params.Name, err)
	}
	c.logger.Debug("Created agent", zap.String("id", agent.ID), zap.String("name", agent.Name))
	return &agent, nil
}

// GetAgent retrieves a hosted agent.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	var agent Agent
	if err := c.get(ctx, join("assistants", agentID), &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// DeleteAgent deletes a hosted agent.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	if err := c.delete(ctx, join("assistants", agentID)); err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", agentID, err)
	}
	c.logger.Debug("Deleted agent", zap.String("id", agentID))
	return nil
}
