package cli

import (
	"context"
	"fmt"

	"github.com/agent-protocol/contoso-agents/pkg/agents"
	"github.com/agent-protocol/contoso-agents/pkg/config"
	"github.com/agent-protocol/contoso-agents/pkg/platform"
)

// newOrchestrator builds an orchestrator from configuration. In function
// mode it also opens the sales database, which the orchestrator's Cleanup
// closes.
func newOrchestrator(ctx context.Context, env *environment, progress func(string)) (*agents.Orchestrator, error) {
	cfg := env.cfg
	if err := cfg.ValidateAgents(); err != nil {
		return nil, fmt.Errorf("invalid agent configuration: %w", err)
	}

	client, err := platform.NewClient(platform.ClientConfig{
		Endpoint:       cfg.Project.Endpoint,
		APIKey:         cfg.Project.APIKey,
		APIVersion:     cfg.Project.APIVersion,
		MaxRetries:     cfg.Project.MaxRetries,
		RequestTimeout: cfg.Project.RequestTimeout,
		Logger:         env.logger,
	})
	if err != nil {
		return nil, err
	}

	opts := agents.Options{
		Model:            cfg.Project.ModelDeploymentName,
		SalesTool:        cfg.Agents.SalesTool,
		SalesAPIEndpoint: cfg.FunctionApp.Endpoint,
		BingConnectionID: cfg.Bing.ConnectionID,
		DatasheetPath:    cfg.Agents.DatasheetPath,
		InstructionsDir:  cfg.Agents.InstructionsDir,
		TaskTimeout:      cfg.Agents.TaskTimeout,
		PollInterval:     cfg.Agents.PollInterval,
		Logger:           env.logger,
		Progress:         progress,
	}

	if cfg.Agents.SalesTool == config.SalesToolFunction {
		store, err := openStore(ctx, env)
		if err != nil {
			return nil, err
		}
		opts.SalesStore = store
	}

	orchestrator, err := agents.NewOrchestrator(client, opts)
	if err != nil {
		if opts.SalesStore != nil {
			opts.SalesStore.Close()
		}
		return nil, err
	}
	return orchestrator, nil
}
