// Package server exposes the role-gated Foreman operations over a JSON
// HTTP API. Transport concerns only: every operation lives in the session,
// review, and sweep packages; this layer resolves the actor and maps fault
// kinds to status codes.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haldane/foreman/internal/clock"
	"github.com/haldane/foreman/internal/notify"
	"github.com/haldane/foreman/internal/sweep"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB         *gorm.DB
	Port       int
	Clock      clock.Clock
	Gateway    notify.Gateway
	Thresholds sweep.Thresholds
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Gateway == nil {
		return fmt.Errorf("server: gateway is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Thresholds == (sweep.Thresholds{}) {
		opts.Thresholds = sweep.DefaultThresholds()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.Info().Int("port", opts.Port).Msg("api server starting")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
