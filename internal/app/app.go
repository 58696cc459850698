package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/snapnest-relay/internal/auth"
	"github.com/vovakirdan/snapnest-relay/internal/config"
	"github.com/vovakirdan/snapnest-relay/internal/core"
	"github.com/vovakirdan/snapnest-relay/internal/log"
	"github.com/vovakirdan/snapnest-relay/internal/store"
	"github.com/vovakirdan/snapnest-relay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/snapnest-relay/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
		Leeway:   cfg.JWTLeeway,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(core.Options{
		Messages:       st,
		Calls:          st,
		Logger:         log.Component(logger, "hub"),
		PersistTimeout: cfg.PersistTimeout,
		RingTimeout:    cfg.RingTimeout,
		EventBuffer:    cfg.EventBuffer,
	})
	server := transporthttp.NewServer(hub, authService, st, cfg, log.Component(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(hubCtx)
	}()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("snapnest relay listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var err error
	select {
	case err = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err = a.server.Shutdown(shutdownCtx); err == nil {
			err = <-serverErr
		}
	}

	// Shutdown does not touch upgraded sockets; closing the hub ends their
	// calls and releases them. The hub loop outlives both so the queued
	// call logs are flushed.
	a.hub.Close()
	stopHub()
	<-hubDone
	a.cleanup()
	return err
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
