// Package server exposes the HTTP boundary: a JSON API over the
// orchestrator plus the websocket upgrade endpoint. It owns transport
// auth and status-code mapping; all debate semantics live below it.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/rostrum/internal/debate"
	"github.com/zulandar/rostrum/internal/hub"
	"github.com/zulandar/rostrum/internal/token"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Orchestrator *debate.Orchestrator
	Tokens       *token.Service
	Hub          *hub.Hub
	Port         int
	RetryLimit   int
}

// Start launches the HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered. Split out
// from Start so tests can drive it through httptest.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("server: orchestrator is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("server: token service is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = 3
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)
	return router, nil
}
