package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/contoso-agents/pkg/salesapi"
)

// serveCommand creates the 'serve' command
func serveCommand() *cli.Command {
	flags := append(databaseFlags(), webServerFlags()...)
	flags = append(flags, &cli.StringFlag{
		Name:  "public-url",
		Usage: "URL the sales API is reachable at, used in the served OpenAPI document",
	})

	return &cli.Command{
		Name:   "serve",
		Usage:  "Starts the Contoso sales query API",
		Flags:  flags,
		Action: serveCommandAction,
	}
}

func serveCommandAction(c *cli.Context) error {
	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.cfg.ValidateServer(); err != nil {
		return err
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	store, err := openStore(ctx, env)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := salesapi.NewServer(store, &salesapi.ServerConfig{
		Address:      env.cfg.Server.Address(),
		PublicURL:    env.cfg.Server.BaseURL(),
		AllowOrigins: env.cfg.Server.AllowOrigins,
		Logger:       env.logger,
		Registry:     registry,
	})

	baseURL := env.cfg.Server.BaseURL()
	fmt.Printf("Starting Contoso Sales API...\n")
	fmt.Printf("Database: %s\n", store.Path())
	if store.IsSample() {
		fmt.Printf("Using sample data (no packaged database at %s)\n", env.cfg.Database.Path)
	}
	fmt.Printf("🚀 API endpoints available at: %s\n", baseURL)
	fmt.Printf("  GET  /health - Health check\n")
	fmt.Printf("  GET  /database-info - Tables, columns and row counts\n")
	fmt.Printf("  POST /query-sales-data - Run a SQL query\n")
	fmt.Printf("  GET  /openapi.json - OpenAPI document for the agent tool\n")
	fmt.Printf("  GET  /metrics - Prometheus metrics\n")

	return server.Start(ctx)
}
