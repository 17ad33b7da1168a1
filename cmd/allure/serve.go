package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/allureimpex/allure-impex-api/internal/config"
	"github.com/allureimpex/allure-impex-api/internal/metrics"
	"github.com/allureimpex/allure-impex-api/internal/router"
	"github.com/allureimpex/allure-impex-api/internal/service"
	"github.com/allureimpex/allure-impex-api/internal/utils"
)

func serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if port != "" {
				e.cfg.Port = port
			}
			return serve(cmd.Context(), e)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides APP_PORT)")
	return cmd
}

func serve(parent context.Context, e env) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := e.openStores(ctx)
	if err != nil {
		return err
	}
	defer e.closeStores(stores)

	images, err := e.imageHost()
	if err != nil {
		return err
	}
	pub := e.publisher()
	defer pub.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col := metrics.NewCollector(reg)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		e.log.Warn().Msg("redis unavailable, rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	svc := service.New(service.Deps{
		Stores:         stores,
		Tokens:         utils.NewTokenIssuer(e.cfg.JWTSecret, e.cfg.JWTExpire),
		BcryptCost:     e.cfg.BcryptCost,
		Images:         images,
		Events:         pub,
		Log:            e.log,
		Metrics:        col,
		UploadMaxBytes: e.cfg.UploadMaxBytes,
		ImageTimeout:   e.cfg.UpstreamTimeout,
	})
	srv := router.New(router.Deps{
		Config:    e.cfg,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Services:  svc,
		Ping:      stores.Ping,
		Log:       e.log,
		Redis:     rdb,
		Metrics:   col,
		Gatherer:  reg,
	})

	errCh := make(chan error, 1)
	go func() {
		e.log.Info().Str("port", e.cfg.Port).Str("env", e.cfg.Env).Str("store", e.cfg.StoreDriver).Msg("listening")
		errCh <- srv.Start(":" + e.cfg.Port)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	e.log.Info().Msg("shutting down")
	return router.Shutdown(srv, 10*time.Second)
}
