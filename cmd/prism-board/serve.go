package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"prism-board/api"
	"prism-board/config"
	"prism-board/storage"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(root *rootOptions) *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.Server.ListenAddr = listenAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (overrides server.listen_addr)")
	return cmd
}

func newAuth(cfg config.AuthConfig) (*api.Auth, error) {
	if cfg.SharedSecret != "" {
		return api.NewSharedSecretAuth([]byte(cfg.SharedSecret), cfg.Audience, ""), nil
	}
	if cfg.Audience == "" || cfg.Domain == "" {
		return nil, errors.New("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, cfg.Audience, "https://"+cfg.Domain+"/"), nil
}

func runServe(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	gws, err := openGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer gws.Close()

	auth, err := newAuth(cfg.Auth)
	if err != nil {
		return err
	}
	sessions := api.NewSessions(gws.gateway, logger, storeOptions(cfg, logger)...)

	var deduper api.Deduper
	if gws.redis != nil {
		deduper = api.NewRedisDeduper(gws.redis, config.Duration(cfg.Redis.DeduperTTL, 24*time.Hour))
		if cfg.Redis.UpdatesChannel != "" {
			go storage.WatchUpdates(ctx, logger, gws.redis, cfg.Redis.UpdatesChannel, gws.cache.Origin(), func(scope string) {
				sessions.Refresh(ctx, scope)
			})
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))
	if cfg.Debug {
		pprof.Register(e)
	}
	api.Register(e, sessions, auth, deduper, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.ListenAddr).Info("board api listening")
		errCh <- e.Start(cfg.Server.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
