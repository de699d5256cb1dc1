package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/agent-protocol/contoso-agents/pkg/agents"
	"github.com/agent-protocol/contoso-agents/pkg/terminal"
)

const cleanupTimeout = 2 * time.Minute

// chatCommand creates the 'chat' command
func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Provisions the Contoso agents and runs an interactive session with the coordinator",
		Flags: append(agentFlags(), append(databaseFlags(),
			&cli.StringSliceFlag{
				Name:  "task",
				Usage: "Run the given task and exit instead of prompting (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "show-status",
				Usage: "Print run status changes while a task runs",
			},
		)...),
		Action: chatCommandAction,
	}
}

func chatCommandAction(c *cli.Context) error {
	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}
	defer env.close()

	ctx, stop := signalContext(c.Context)
	defer stop()

	printer := terminal.NewPrinter(os.Stdout, 0)
	printer.Banner("Contoso Multi-Agent System")

	orchestrator, err := newOrchestrator(ctx, env, func(msg string) { printer.Info("%s", msg) })
	if err != nil {
		return err
	}
	defer cleanupAgents(ctx, orchestrator, printer, env.logger)

	printer.Info("Creating specialist agents...")
	if err := orchestrator.InitializeAgents(ctx); err != nil {
		return fmt.Errorf("failed to initialize agents: %w", err)
	}
	printer.Success("All agents ready")
	printer.Agents(orchestrator.Agents())

	var opts agents.TaskOptions
	if c.Bool("show-status") {
		opts.OnStatus = printer.RunStatus
	}

	if tasks := c.StringSlice("task"); len(tasks) > 0 {
		for _, task := range tasks {
			runChatTask(ctx, orchestrator, printer, task, opts)
		}
		return nil
	}

	return chatLoop(ctx, orchestrator, printer, opts)
}

// chatLoop prompts until exit, quit, end of input or a signal.
func chatLoop(ctx context.Context, orchestrator *agents.Orchestrator, printer *terminal.Printer, opts agents.TaskOptions) error {
	printer.Info("\nAsk the coordinator about sales, market trends or reports. Type 'exit' to quit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		printer.Prompt("\nYour request")
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			request := strings.TrimSpace(line)
			switch strings.ToLower(request) {
			case "":
				continue
			case "exit", "quit":
				return nil
			}
			runChatTask(ctx, orchestrator, printer, request, opts)
		}
	}
}

func runChatTask(ctx context.Context, orchestrator *agents.Orchestrator, printer *terminal.Printer, request string, opts agents.TaskOptions) {
	printer.Info("\nProcessing: %s", request)
	start := time.Now()
	result := orchestrator.RunTask(ctx, orchestrator.ThreadID(), request, opts)
	printer.Result(result)
	printer.Info("(%s)", time.Since(start).Round(time.Second))
}

// cleanupAgents deletes everything the orchestrator created. It runs after a
// signal too, so it does not inherit cancellation.
func cleanupAgents(ctx context.Context, orchestrator *agents.Orchestrator, printer *terminal.Printer, logger *zap.Logger) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	printer.Info("\nCleaning up agents...")
	if err := orchestrator.Cleanup(cleanupCtx); err != nil {
		logger.Error("Cleanup finished with errors", zap.Error(err))
		printer.Error("Cleanup finished with errors: %v", err)
		return
	}
	printer.Success("Cleanup complete")
}
