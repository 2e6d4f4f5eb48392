package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashutoshrp06/parcel-agent/internal/config"
	"github.com/ashutoshrp06/parcel-agent/internal/poller"
)

var pollMax int

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Process unread inbox mail once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		maxResults := cfg.Poller.MaxResults
		if pollMax > 0 {
			maxResults = pollMax
		}
		p := poller.New(a.mail, a.agent, poller.Config{
			Interval:   config.Seconds(cfg.Poller.IntervalSeconds),
			MaxResults: maxResults,
		}, logger.Named("poller"))

		summary, err := p.ProcessOnce(cmd.Context())
		if err != nil {
			return err
		}
		if summary.Skipped {
			fmt.Println(errorStyle.Render("Gmail is not authorized. Run `parcel serve` and visit /auth/google first."))
			return nil
		}

		fmt.Printf("%s %d\n", keyStyle.Render("Fetched:"), summary.Fetched)
		fmt.Printf("%s %s\n", keyStyle.Render("Processed:"), successStyle.Render(fmt.Sprint(summary.Processed)))
		fmt.Printf("%s %s\n", keyStyle.Render("Failed:"), errorStyle.Render(fmt.Sprint(summary.Failed)))
		return nil
	},
}

func init() {
	pollCmd.Flags().IntVar(&pollMax, "max", 0, "Maximum number of emails to process (defaults to poller.max_results)")
}
