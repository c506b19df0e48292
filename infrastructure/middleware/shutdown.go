// Package middleware provides HTTP middleware for the control plane.
package middleware

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/solarfleet/control-plane/pkg/logger"
)

// GracefulShutdown drains in-flight requests and runs registered
// cleanup hooks (stopping the scheduler, closing the database pool)
// before the process exits on SIGINT/SIGTERM/SIGQUIT.
type GracefulShutdown struct {
	mu      sync.Mutex
	server  *http.Server
	timeout time.Duration
	done    chan struct{}
	hooks   []func()
	log     *logger.Logger
}

// NewGracefulShutdown builds a shutdown coordinator for server. A
// non-positive timeout falls back to 30s.
func NewGracefulShutdown(server *http.Server, timeout time.Duration) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GracefulShutdown{
		server:  server,
		timeout: timeout,
		done:    make(chan struct{}),
		log:     logger.NewDefault("shutdown"),
	}
}

// OnShutdown registers a hook to run as part of Shutdown, in
// registration order.
func (g *GracefulShutdown) OnShutdown(hook func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, hook)
}

// ListenForSignals starts a goroutine that triggers Shutdown on the
// first SIGINT, SIGTERM, or SIGQUIT.
func (g *GracefulShutdown) ListenForSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		sig := <-sigCh
		g.log.WithField("signal", sig.String()).Info("shutdown signal received")
		g.Shutdown()
	}()
}

// Shutdown runs every registered hook, then stops the HTTP server
// within the configured timeout.
func (g *GracefulShutdown) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, hook := range g.hooks {
		g.runHook(hook)
	}

	if g.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		if err := g.server.Shutdown(ctx); err != nil {
			g.log.WithError(err).Warn("error shutting down http server")
		}
	}

	close(g.done)
}

func (g *GracefulShutdown) runHook(hook func()) {
	defer func() {
		if r := recover(); r != nil {
			g.log.WithField("panic", r).Warn("panic in shutdown hook")
		}
	}()
	hook()
}

// Wait blocks until Shutdown has completed.
func (g *GracefulShutdown) Wait() {
	<-g.done
}
