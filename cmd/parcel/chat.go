package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ashutoshrp06/parcel-agent/internal/agent"
	"github.com/ashutoshrp06/parcel-agent/internal/ui"
	"github.com/ashutoshrp06/parcel-agent/pkg/models"
)

var interactive bool

var chatCmd = &cobra.Command{
	Use:   "chat [query]",
	Short: "Ask the agent a question",
	Long: `Ask the agent a one-shot question, or start an interactive chat that
keeps the conversation between turns.

Examples:
  parcel chat "What products do we have?"
  parcel chat "Find the customer with email jane@example.com"
  parcel chat --it`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if interactive {
			return runInteractive(cmd.Context())
		}
		if len(args) == 0 {
			return cmd.Help()
		}
		return runOneShot(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	chatCmd.Flags().BoolVar(&interactive, "it", false, "Start interactive mode")
}

func runOneShot(ctx context.Context, query string) error {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.input.Validate(query); err != nil {
		return err
	}

	fmt.Printf("%s %s\n\n", headerStyle.Render("Query:"), query)

	resp, err := a.agent.Run(ctx, query, nil, agent.WithObserver(func(ev agent.Event) {
		if ev.State == agent.StateExecutingTools && ev.Result != nil {
			printToolResult(ev.Call.Name, ev.Result)
		}
	}))
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(valueStyle.Render(resp.Response))
	if resp.Termination == models.TerminationExhausted {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Stopped after %d iterations without a final answer.", resp.Iterations)))
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("\nrun %s: %d iterations, %d tool calls", resp.RunID, resp.Iterations, len(resp.ToolCalls))))
	return nil
}

func printToolResult(name string, r *models.ToolResult) {
	if r.Success {
		fmt.Printf("  %s %s %s\n", successStyle.Render("✓"), name, dimStyle.Render(r.Duration.String()))
		return
	}
	fmt.Printf("  %s %s %s\n", errorStyle.Render("✗"), name, dimStyle.Render(r.Error))
}

func runInteractive(ctx context.Context) error {
	// The full-screen UI owns the terminal.
	if !verbose {
		logger = zap.NewNop()
	}

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Print(dimStyle.Render("Connecting to " + a.agent.ModelInfo() + "... "))
	if err := a.agent.Ping(ctx); err != nil {
		fmt.Println(errorStyle.Render("✗"))
		return err
	}
	fmt.Println(successStyle.Render("✓"))

	specs := a.agent.ListTools()
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	return ui.Run(ctx, a.agent, names)
}
