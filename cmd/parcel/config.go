package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ashutoshrp06/parcel-agent/internal/config"
)

var (
	initConfig bool
	showRaw    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or initialise configuration",
	Long: `View the effective configuration (file, defaults and PARCEL_*
environment overrides combined), or write a default config file.

Examples:
  parcel config               # Summary of the effective config
  parcel config --raw         # Full config as YAML
  parcel config --init        # Write defaults to ./config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if initConfig {
			path := configPath
			if path == "" {
				path = "config.yaml"
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ Wrote default configuration to " + path))
			return nil
		}

		if showRaw {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		}

		printConfig(cfg)
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&initConfig, "init", false, "Write a default config file")
	configCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the full config as YAML")
}

func printConfig(c *config.Config) {
	row := func(k, v string) {
		fmt.Printf("%s %s\n", keyStyle.Render(k), valueStyle.Render(v))
	}

	fmt.Println(headerStyle.Render("parcel Configuration"))
	fmt.Println()

	row("LLM endpoint:", c.LLM.Endpoint)
	row("Model:", c.LLM.Model)
	row("API key:", mask(c.LLM.APIKey))
	row("Max iterations:", fmt.Sprint(c.Agent.MaxIterations))
	row("Backend:", c.Backend.BaseURL)
	row("HTTP address:", c.Server.Addr)
	row("gRPC health address:", c.Server.GRPCAddr)
	row("Gmail client:", mask(c.Gmail.ClientID))
	row("Poller:", fmt.Sprintf("%v every %ds", c.Poller.Enabled, c.Poller.IntervalSeconds))
	row("Catalog:", fmt.Sprintf("%v (%s:%d/%s)", c.Catalog.Enabled, c.Catalog.Host, c.Catalog.Port, c.Catalog.Collection))
	row("Log level:", c.Logging.Level)

	fmt.Println()
	for _, p := range configPaths() {
		fmt.Printf("%s %s\n", keyStyle.Render("Config search path:"), dimStyle.Render(p))
	}
}

// mask hides all but the last four characters of a secret.
func mask(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 4:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}
