package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/agent-protocol/contoso-agents/pkg/config"
	"github.com/agent-protocol/contoso-agents/pkg/logging"
)

// Version information - will be set during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// NewApp creates and configures the CLI application
func NewApp() *cli.App {
	app := &cli.App{
		Name:    "contoso",
		Usage:   "Contoso sales query API and multi-agent coordinator",
		Version: Version,
		Commands: []*cli.Command{
			serveCommand(),
			chatCommand(),
			apiServerCommand(),
			seedCommand(),
			queryCommand(),
			dbInfoCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"CONTOSO_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "Optional .env file with workshop settings",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Logging level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
		},
	}

	// Custom help template
	cli.AppHelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}

USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}
   {{if .Commands}}
COMMANDS:
{{range .Commands}}{{if not .HideHelp}}   {{join .Names ", "}}{{ "\t"}}{{.Usage}}{{ "\n" }}{{end}}{{end}}{{end}}{{if .VisibleFlags}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}{{end}}{{if .Version}}
VERSION:
   {{.Version}}
   {{end}}
`

	return app
}

// environment is what every command starts from.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
}

// loadEnvironment reads configuration and builds the logger. Command flags
// that were set explicitly override configured values.
func loadEnvironment(c *cli.Context) (*environment, error) {
	cfg, err := config.Load(config.Options{
		File:   c.String("config"),
		DotEnv: c.String("env-file"),
	})
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(c, cfg)

	level := cfg.Log.Level
	if c.Bool("verbose") {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Development: cfg.Log.Development || c.Bool("verbose")})
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, logger: logger}, nil
}

func (e *environment) close() {
	_ = e.logger.Sync()
}

func applyFlagOverrides(c *cli.Context, cfg *config.Config) {
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("db-path") {
		cfg.Database.Path = c.String("db-path")
	}
	if c.IsSet("read-only") {
		cfg.Database.ReadOnly = c.Bool("read-only")
	}
	if c.IsSet("host") {
		cfg.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("public-url") {
		cfg.Server.PublicURL = c.String("public-url")
	}
	if c.IsSet("allow-origins") {
		cfg.Server.AllowOrigins = c.StringSlice("allow-origins")
	}
	if c.IsSet("sales-tool") {
		cfg.Agents.SalesTool = c.String("sales-tool")
	}
	if c.IsSet("instructions-dir") {
		cfg.Agents.InstructionsDir = c.String("instructions-dir")
	}
	if c.IsSet("datasheet") {
		cfg.Agents.DatasheetPath = c.String("datasheet")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Database flags shared by the commands that open the sales database.
func databaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "db-path",
			Usage: "Path to the sales SQLite database (a sample is created when missing)",
		},
		&cli.BoolFlag{
			Name:  "read-only",
			Usage: "Reject statements that do not return rows",
		},
	}
}

// Common web server flags
func webServerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "Host to bind the server to",
		},
		&cli.IntFlag{
			Name:  "port",
			Usage: "Port to bind the server to",
		},
		&cli.StringSliceFlag{
			Name:  "allow-origins",
			Usage: "Origins to allow for CORS",
		},
	}
}

// Flags for the commands that provision hosted agents.
func agentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "sales-tool",
			Usage: fmt.Sprintf("Sales database access: analyst OpenAPI tool (%s) or coordinator functions (%s)", config.SalesToolOpenAPI, config.SalesToolFunction),
		},
		&cli.StringFlag{
			Name:  "instructions-dir",
			Usage: "Directory with agent instruction files overriding the built-in ones",
		},
		&cli.StringFlag{
			Name:  "datasheet",
			Usage: "Product datasheet indexed for the market researcher",
		},
	}
}
