package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0"
	GitCommit = "dev"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(headerStyle.Render("parcel"))
		fmt.Println()
		fmt.Printf("%s %s\n", keyStyle.Render("Version:"), valueStyle.Render(Version))
		fmt.Printf("%s %s\n", keyStyle.Render("Git Commit:"), valueStyle.Render(GitCommit))
		fmt.Printf("%s %s\n", keyStyle.Render("Build Date:"), valueStyle.Render(BuildDate))
		fmt.Printf("%s %s\n", keyStyle.Render("Go Version:"), valueStyle.Render(runtime.Version()))
		fmt.Printf("%s %s/%s\n", keyStyle.Render("Platform:"), runtime.GOOS, runtime.GOARCH)
	},
}
