// Package server runs the quiz hub's long-lived components: the hub loop,
// the admin HTTP listener and the gRPC health endpoint.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultStopTimeout bounds how long a single service may take to stop.
const DefaultStopTimeout = 15 * time.Second

// Service is a long-running component.
type Service interface {
	// Start runs the service and blocks until it stops or fails.
	Start() error
	// Stop asks a running Start to return.
	Stop()
}

// ContextService runs fn with a context that Stop cancels. It suits
// components whose run loop is driven by a context, such as the hub.
type ContextService struct {
	run    func(ctx context.Context) error
	ctx    context.Context
	cancel context.CancelFunc
}

// NewContextService wraps a context-driven run function as a Service.
//
// Precondition: run must return once its context is cancelled.
func NewContextService(run func(ctx context.Context) error) *ContextService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ContextService{run: run, ctx: ctx, cancel: cancel}
}

// Start calls run and blocks until it returns.
func (c *ContextService) Start() error { return c.run(c.ctx) }

// Stop cancels the run context.
func (c *ContextService) Stop() { c.cancel() }

// Lifecycle starts services together and stops them in reverse order of
// registration.
type Lifecycle struct {
	logger      *zap.Logger
	stopTimeout time.Duration
	signals     []os.Signal

	mu       sync.Mutex
	services []*managed
}

type managed struct {
	name    string
	service Service
	exited  chan struct{}
}

// NewLifecycle returns an empty Lifecycle that shuts down on SIGINT or SIGTERM.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		logger:      logger,
		stopTimeout: DefaultStopTimeout,
		signals:     []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// SetStopTimeout overrides DefaultStopTimeout. Non-positive values are ignored.
func (l *Lifecycle) SetStopTimeout(d time.Duration) {
	if d > 0 {
		l.stopTimeout = d
	}
}

// Add registers a named service.
//
// Precondition: name must be non-empty; svc must be non-nil; Run not yet called.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, &managed{name: name, service: svc, exited: make(chan struct{})})
}

// Run starts every service and blocks until a signal arrives, a service
// fails, or ctx is cancelled. It then stops the services in reverse order,
// giving each up to the stop timeout to return from Start.
//
// Postcondition: Stop has been called on every service. Returns the first
// service failure, or nil on a requested shutdown.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	l.mu.Lock()
	services := append([]*managed(nil), l.services...)
	l.mu.Unlock()

	failed := make(chan error, len(services))
	for _, m := range services {
		go l.start(m, failed)
	}
	l.logger.Info("services started", zap.Int("count", len(services)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, l.signals...)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case runErr = <-failed:
		l.logger.Error("service failed, shutting down", zap.Error(runErr))
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	l.stopAll(services)
	l.logger.Info("shutdown complete", zap.Duration("uptime", time.Since(start)))
	return runErr
}

func (l *Lifecycle) start(m *managed, failed chan<- error) {
	defer close(m.exited)
	began := time.Now()
	if err := m.service.Start(); err != nil {
		l.logger.Error("service exited with error",
			zap.String("service", m.name),
			zap.Duration("uptime", time.Since(began)),
			zap.Error(err),
		)
		failed <- fmt.Errorf("service %s: %w", m.name, err)
		return
	}
	l.logger.Debug("service exited", zap.String("service", m.name))
}

func (l *Lifecycle) stopAll(services []*managed) {
	for i := len(services) - 1; i >= 0; i-- {
		m := services[i]
		began := time.Now()
		m.service.Stop()

		select {
		case <-m.exited:
			l.logger.Info("service stopped",
				zap.String("service", m.name),
				zap.Duration("elapsed", time.Since(began)),
			)
		case <-time.After(l.stopTimeout):
			l.logger.Warn("service did not stop in time",
				zap.String("service", m.name),
				zap.Duration("timeout", l.stopTimeout),
			)
		}
	}
}
