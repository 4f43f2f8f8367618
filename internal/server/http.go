package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPService runs an http.Server under a Lifecycle.
type HTTPService struct {
	logger          *zap.Logger
	srv             *http.Server
	shutdownTimeout time.Duration
	ready           chan struct{}
	addr            net.Addr
}

// NewHTTPService wraps handler in an http.Server listening on addr.
//
// Precondition: logger and handler must be non-nil.
func NewHTTPService(logger *zap.Logger, addr string, handler http.Handler, readTimeout, writeTimeout, shutdownTimeout time.Duration) *HTTPService {
	return &HTTPService{
		logger: logger,
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		shutdownTimeout: shutdownTimeout,
		ready:           make(chan struct{}),
	}
}

// Start listens and serves until Stop is called.
func (h *HTTPService) Start() error {
	lis, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.srv.Addr, err)
	}
	h.addr = lis.Addr()
	close(h.ready)
	h.logger.Info("HTTP server listening", zap.String("addr", lis.Addr().String()))

	if err := h.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests, waiting at most the shutdown timeout.
func (h *HTTPService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		h.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
}

// Addr blocks until the listener is bound and returns its address.
func (h *HTTPService) Addr() net.Addr {
	<-h.ready
	return h.addr
}
