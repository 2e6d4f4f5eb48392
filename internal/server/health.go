package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer serves the standard grpc.health.v1 service so orchestrators
// can probe the agent process.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewHealthServer creates a health server reporting NOT_SERVING until
// SetServing(true).
func NewHealthServer(logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	hs := health.NewServer()
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)

	return &HealthServer{grpc: srv, health: hs, logger: logger}
}

// Serve accepts connections on ln until Stop.
func (h *HealthServer) Serve(ln net.Listener) error {
	h.logger.Info("gRPC health server listening", zap.String("addr", ln.Addr().String()))
	if err := h.grpc.Serve(ln); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// SetServing flips the overall status.
func (h *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
}

// Stop marks the service NOT_SERVING and stops the server gracefully.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}

// ProbeResult is the outcome of a health probe.
type ProbeResult struct {
	Target  string        `json:"target"`
	Status  string        `json:"status"`
	Latency time.Duration `json:"latency"`
}

// Probe checks the overall health status of the gRPC server at target.
func Probe(ctx context.Context, target string) (ProbeResult, error) {
	start := time.Now()

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return ProbeResult{}, fmt.Errorf("failed to connect to gRPC server at %s: %w", target, err)
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return ProbeResult{}, fmt.Errorf("gRPC health check RPC failed: %w", err)
	}

	return ProbeResult{
		Target:  target,
		Status:  resp.GetStatus().String(),
		Latency: time.Since(start),
	}, nil
}
