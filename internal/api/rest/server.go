package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/oshokin/temperature-monitor/internal/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Serve runs handler on lis until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, lis net.Listener, handler http.Handler) error {
	ctx = logger.WithName(ctx, "rest")

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.InfoKV(ctx, "HTTP API listening", "listen_address", lis.Addr().String())

	// stopped is closed when Serve fails on its own, releasing the shutdown watcher.
	stopped := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}

		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		done <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		close(stopped)

		return fmt.Errorf("serve HTTP: %w", err)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("shutdown HTTP: %w", err)
	}

	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// ListenAndServe listens on address and calls Serve.
func ListenAndServe(ctx context.Context, address string, handler http.Handler) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return Serve(ctx, lis, handler)
}
