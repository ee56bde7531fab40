package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/oauthgate/internal/app"
	"github.com/dropDatabas3/oauthgate/internal/config"
	"github.com/dropDatabas3/oauthgate/internal/observability/logger"
	"github.com/dropDatabas3/oauthgate/internal/util/mask"
)

func newServeCmd(configPath, envFile *string) *cobra.Command {
	var printConfig bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP con /auth/{provider} y /auth/{provider}/callback",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *envFile != "" {
				if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("dotenv %s: %w", *envFile, err)
				}
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if printConfig {
				return writeRedacted(cmd, cfg)
			}

			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "oauthgate"})
			defer func() { _ = logger.Sync() }()
			log := logger.L()

			c, err := app.Build(cfg, log, app.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, c.Handler, log)
		},
	}
	cmd.Flags().BoolVar(&printConfig, "print-config", false, "imprime la config efectiva (sin secretos) y termina")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("service up",
			zap.String("addr", cfg.Server.Addr),
			zap.String("env", cfg.App.Env),
			zap.String("cache", cfg.Cache.Kind),
			zap.Strings("providers", cfg.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func writeRedacted(cmd *cobra.Command, cfg *config.Config) error {
	out := *cfg
	redact := func(s *string) { *s = mask.Secret(*s) }
	redact(&out.State.Secret)
	redact(&out.Cache.Redis.Password)
	redact(&out.Providers.GitHub.ClientSecret)
	redact(&out.Providers.Google.ClientSecret)
	redact(&out.Providers.Microsoft.ClientSecret)

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(&out)
}
