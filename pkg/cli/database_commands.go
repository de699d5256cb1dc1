package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/contoso-agents/pkg/salesdb"
)

// seedCommand creates the 'seed' command
func seedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Creates or refreshes the sample sales database",
		ArgsUsage: "[PATH]",
		Flags:     databaseFlags(),
		Action:    seedCommandAction,
	}
}

func seedCommandAction(c *cli.Context) error {
	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}
	defer env.close()

	path := c.Args().First()
	if path == "" {
		path = env.cfg.Database.Path
	}
	if path == "" {
		return fmt.Errorf("PATH is required")
	}

	if err := salesdb.CreateSampleDatabase(c.Context, path); err != nil {
		return err
	}
	fmt.Printf("Sample database ready at %s (%d rows in sales_data)\n", path, len(salesdb.SampleRows))
	return nil
}

// queryCommand creates the 'query' command
func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Runs one SQL statement against the sales database and prints JSON",
		ArgsUsage: "SQL",
		Flags:     databaseFlags(),
		Action:    queryCommandAction,
	}
}

func queryCommandAction(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("SQL is required")
	}
	return withStore(c, func(ctx context.Context, store *salesdb.Store) error {
		result, err := store.ExecuteQuery(ctx, query)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		return printJSON(os.Stdout, result)
	})
}

// dbInfoCommand creates the 'db-info' command
func dbInfoCommand() *cli.Command {
	return &cli.Command{
		Name:   "db-info",
		Usage:  "Prints the tables, columns and row counts of the sales database",
		Flags:  databaseFlags(),
		Action: dbInfoCommandAction,
	}
}

func dbInfoCommandAction(c *cli.Context) error {
	return withStore(c, func(ctx context.Context, store *salesdb.Store) error {
		info, err := store.Info(ctx)
		if err != nil {
			return fmt.Errorf("failed to read database info: %w", err)
		}
		return printJSON(os.Stdout, info)
	})
}

// withStore opens the configured database for the duration of fn.
func withStore(c *cli.Context, fn func(ctx context.Context, store *salesdb.Store) error) error {
	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}
	defer env.close()

	store, err := openStore(c.Context, env)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(c.Context, store)
}

func openStore(ctx context.Context, env *environment) (*salesdb.Store, error) {
	return salesdb.Open(ctx, salesdb.Options{
		Path:      env.cfg.Database.Path,
		SampleDir: env.cfg.Database.SampleDir,
		ReadOnly:  env.cfg.Database.ReadOnly,
		Logger:    env.logger,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
