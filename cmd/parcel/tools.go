package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List available tools",
	Long: `List the tools the agent may call.

Examples:
  parcel tools           # List all tools
  parcel tools -v        # Show parameters`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		toolStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#8B5CF6")).Bold(true)
		paramStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#0EA5E9"))

		fmt.Println(headerStyle.Render("Available Tools"))
		fmt.Println()

		for _, spec := range a.registry.Specs() {
			fmt.Printf("  %s\n", toolStyle.Render(spec.Name))
			fmt.Printf("    %s\n", dimStyle.Render(firstLine(spec.Description)))

			if verbose && len(spec.Parameters) > 0 {
				for _, p := range spec.Parameters {
					req := ""
					if p.Required {
						req = " (required)"
					}
					fmt.Printf("      %s %s%s\n", paramStyle.Render(p.Name), dimStyle.Render(p.Type), req)
				}
			}
		}
		fmt.Println()
		fmt.Println(dimStyle.Render(fmt.Sprintf("%d tools, max %d iterations per run", len(a.registry.Specs()), a.agent.MaxIterations())))
		return nil
	},
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
