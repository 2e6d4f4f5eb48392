package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ashutoshrp06/parcel-agent/internal/config"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D97706")).Bold(true)
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).Width(22)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9FAFB"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

var rootCmd = &cobra.Command{
	Use:   "parcel",
	Short: "LLM order-intake agent for an e-commerce backend",
	Long: `
  ┌─┐┌─┐┬─┐┌─┐┌─┐┬
  ├─┘├─┤├┬┘│  ├┤ │
  ┴  ┴ ┴┴└─└─┘└─┘┴─┘

  Reads order emails, looks up customers and products, places orders
  and replies, all through a tool-calling language model.

Usage:
  parcel serve                 Run the HTTP API, health server and inbox poller
  parcel chat "query"          Ask a one-shot question
  parcel chat --it             Start the interactive chat
  parcel poll                  Process the inbox once
  parcel tools                 List available tools
  parcel catalog sync          Index products for semantic search
  parcel config                Show configuration`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFromPaths(configPaths()...)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = newLogger(level, verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

// configPaths lists candidate config files in priority order.
func configPaths() []string {
	if configPath != "" {
		return []string{configPath}
	}
	paths := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".parcel", "config.yaml"))
	}
	return paths
}

// newLogger builds a production logger at level, or a development logger
// when dev is set.
func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if dev {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = lvl
	return zcfg.Build()
}
