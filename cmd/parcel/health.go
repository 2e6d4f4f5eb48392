package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashutoshrp06/parcel-agent/internal/server"
)

var healthTarget string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe a running agent's gRPC health service",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := healthTarget
		if target == "" {
			target = cfg.Server.GRPCAddr
		}
		if strings.HasPrefix(target, ":") {
			target = "localhost" + target
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		res, err := server.Probe(ctx, target)
		if err != nil {
			fmt.Println(errorStyle.Render("✗ " + target + " unreachable"))
			return err
		}

		style := successStyle
		if res.Status != "SERVING" {
			style = errorStyle
		}
		fmt.Printf("%s %s %s\n", style.Render(res.Status), valueStyle.Render(res.Target), dimStyle.Render(res.Latency.String()))
		if res.Status != "SERVING" {
			return fmt.Errorf("service is %s", res.Status)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthTarget, "target", "", "host:port to probe (defaults to server.grpc_addr)")
}
