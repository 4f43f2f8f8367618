package server

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported for the hub.
const HealthService = "quizhub.Hub"

// Check reports whether one dependency is healthy.
type Check func(ctx context.Context) error

// HealthServer serves the standard gRPC health protocol. It polls its checks
// and reports SERVING only while all of them pass.
type HealthServer struct {
	logger   *zap.Logger
	addr     string
	interval time.Duration
	timeout  time.Duration
	checks   map[string]Check

	grpcServer *grpc.Server
	health     *health.Server
	stop       chan struct{}
	stopOnce   sync.Once
	ready      chan struct{}
	boundAddr  net.Addr
}

// NewHealthServer creates a HealthServer on addr evaluating checks every interval.
//
// Precondition: logger must be non-nil; interval must be positive.
// Postcondition: Both the overall ("") and HealthService statuses start NOT_SERVING.
func NewHealthServer(logger *zap.Logger, addr string, interval time.Duration, checks map[string]Check) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &HealthServer{
		logger:     logger,
		addr:       addr,
		interval:   interval,
		timeout:    interval / 2,
		checks:     checks,
		grpcServer: gs,
		health:     hs,
		stop:       make(chan struct{}),
		ready:      make(chan struct{}),
	}
}

// Evaluate runs every check once and publishes the resulting status.
//
// Postcondition: Returns nil when all checks pass, otherwise the first failure
// in check-name order.
func (h *HealthServer) Evaluate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var failure error
	for _, name := range sortedKeys(h.checks) {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			if failure == nil {
				failure = fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if failure != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(HealthService, status)
	return failure
}

// Start listens, serves gRPC health, and polls the checks until Stop.
func (h *HealthServer) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	h.boundAddr = lis.Addr()
	close(h.ready)
	h.logger.Info("gRPC health server listening", zap.String("addr", lis.Addr().String()))

	go h.poll()
	return h.grpcServer.Serve(lis)
}

func (h *HealthServer) poll() {
	_ = h.Evaluate(context.Background())
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			_ = h.Evaluate(context.Background())
		}
	}
}

// Stop marks every service NOT_SERVING and shuts the gRPC server down.
func (h *HealthServer) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.health.Shutdown()
		h.grpcServer.GracefulStop()
	})
}

// Addr blocks until the listener is bound and returns its address.
func (h *HealthServer) Addr() net.Addr {
	<-h.ready
	return h.boundAddr
}

func sortedKeys(m map[string]Check) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
