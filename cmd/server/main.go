package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/snapnest-relay/internal/app"
	"github.com/vovakirdan/snapnest-relay/internal/config"
	"github.com/vovakirdan/snapnest-relay/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	// Zero-valued flags leave the loaded configuration untouched.
	cmd := &cobra.Command{
		Use:           "snapnest-relay",
		Short:         "Real-time chat, presence and call signaling relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLog := log.New(overrides.LogLevel)
			if err := godotenv.Load(); err != nil {
				bootLog.Debug().Err(err).Msg("no .env file loaded")
			}

			cfg, resolved, err := config.Load(bootLog, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.UpdateFrom(overrides)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			logger := log.Build(log.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
			logger.Info().Str("config", resolved).Str("addr", cfg.Addr).Msg("configuration loaded")
			if cfg.JWTSecret == config.Default().JWTSecret {
				logger.Warn().Msg("jwt_secret is the built-in default, set SNAPNEST_JWT_SECRET in production")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited with error: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "log encoding (console, json)")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")
	flags.DurationVar(&overrides.RingTimeout, "ring-timeout", 0, "how long an unanswered call rings")
	flags.DurationVar(&overrides.PersistTimeout, "persist-timeout", 0, "deadline for one message or call-log write")
	flags.IntVar(&overrides.MessagesPerMinute, "messages-per-minute", 0, "per-socket inbound frame limit")
	flags.IntVar(&overrides.EventBuffer, "event-buffer", 0, "outbound frames queued per socket before dropping")
	flags.StringSliceVar(&overrides.AllowedOrigins, "allowed-origin", nil, "CORS and websocket origin, repeatable")
	return cmd
}
