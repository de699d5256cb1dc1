package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/contoso-agents/pkg/api"
	"github.com/agent-protocol/contoso-agents/pkg/sessions"
	"github.com/agent-protocol/contoso-agents/pkg/terminal"
)

// apiServerCommand creates the 'api-server' command
func apiServerCommand() *cli.Command {
	flags := append(agentFlags(), databaseFlags()...)
	flags = append(flags, webServerFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "sessions-dir",
			Usage: "Directory to persist sessions in (in memory when empty)",
		},
		&cli.DurationFlag{
			Name:  "session-ttl",
			Usage: "Expire sessions idle for this long and delete their threads (0 disables)",
		},
	)

	return &cli.Command{
		Name:   "api-server",
		Usage:  "Starts an HTTP server in front of the Contoso coordinator",
		Flags:  flags,
		Action: apiServerCommandAction,
	}
}

func apiServerCommandAction(c *cli.Context) error {
	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}
	defer env.close()

	cfg := env.cfg
	if c.IsSet("port") {
		// --port selects the API listener for this command.
		cfg.Server.APIPort = c.Int("port")
	}
	if c.IsSet("session-ttl") {
		cfg.Server.SessionTTL = c.Duration("session-ttl")
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	var sessionService sessions.SessionService = sessions.NewInMemorySessionService()
	if dir := c.String("sessions-dir"); dir != "" {
		fileService, err := sessions.NewFileSessionService(dir)
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
		sessionService = fileService
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	printer := terminal.NewPrinter(os.Stdout, 0)
	printer.Banner("Contoso Multi-Agent API Server")

	orchestrator, err := newOrchestrator(ctx, env, func(msg string) { printer.Info("%s", msg) })
	if err != nil {
		return err
	}
	defer cleanupAgents(ctx, orchestrator, printer, env.logger)

	if err := orchestrator.InitializeAgents(ctx); err != nil {
		return fmt.Errorf("failed to initialize agents: %w", err)
	}
	printer.Agents(orchestrator.Agents())

	server, err := api.NewServer(orchestrator, sessionService, &api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.APIPort,
		AllowOrigins: cfg.Server.AllowOrigins,
		SessionTTL:   cfg.Server.SessionTTL,
		Logger:       env.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Printf("🚀 API endpoints available at: http://%s:%d\n", cfg.Server.Host, cfg.Server.APIPort)
	fmt.Printf("📖 API documentation:\n")
	fmt.Printf("  GET  / - Chat page\n")
	fmt.Printf("  POST /apps/{app}/users/{user}/sessions - Create a session\n")
	fmt.Printf("  POST /run - Run a task synchronously\n")
	fmt.Printf("  POST /run_sse - Run a task with Server-Sent Events\n")
	fmt.Printf("  WS   /run_live - WebSocket for live tasks\n")
	fmt.Printf("  GET  /agents - List provisioned agents\n")
	fmt.Printf("  GET  /health - Health check\n")

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
