package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ashutoshrp06/parcel-agent/internal/config"
	"github.com/ashutoshrp06/parcel-agent/internal/poller"
	"github.com/ashutoshrp06/parcel-agent/internal/server"
)

var noPoll bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, gRPC health server and inbox poller",
	Long: `Run the HTTP API (POST /chat, Google OAuth routes), the gRPC health
service and, when enabled, the Gmail inbox poller until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noPoll, "no-poll", false, "Disable the inbox poller")
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	httpLn, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	grpcLn, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		httpLn.Close()
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}

	srv := server.New(server.Config{Addr: cfg.Server.Addr}, a.agent, a.authenticator(), a.input, logger.Named("http"))
	health := server.NewHealthServer(logger.Named("grpc"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(httpLn) })
	g.Go(func() error { return health.Serve(grpcLn) })
	health.SetServing(true)

	if cfg.Poller.Enabled && !noPoll {
		p := poller.New(a.mail, a.agent, poller.Config{
			Interval:   config.Seconds(cfg.Poller.IntervalSeconds),
			MaxResults: cfg.Poller.MaxResults,
		}, logger.Named("poller"))
		g.Go(func() error { return p.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.Server.ShutdownTimeoutSeconds))
		defer cancel()

		health.Stop()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("parcel agent started",
		zap.String("http_addr", httpLn.Addr().String()),
		zap.String("grpc_addr", grpcLn.Addr().String()),
		zap.String("model", a.agent.ModelInfo()),
		zap.Int("tools", len(a.registry.Specs())))

	return g.Wait()
}
