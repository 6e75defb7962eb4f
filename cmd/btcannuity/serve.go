package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/rpgo/btc-annuity/internal/config"
	"github.com/rpgo/btc-annuity/internal/recalc"
	"github.com/rpgo/btc-annuity/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [input-file]",
	Short: "Serve the portfolio API and WebSocket updates",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)

		ctx := cmd.Context()
		prices, err := loadPrices(ctx, cfg.PriceSource, logger)
		if err != nil {
			return err
		}

		c, closeCache, err := config.BuildCache(cfg.Cache)
		if err != nil {
			return err
		}
		defer closeCache()

		hub := server.NewHub(logger)
		go hub.Run(ctx)

		ctrl := recalc.NewController(c, recalc.WithExecutor(recalc.GoExecutor{}), recalc.WithLogger(logger))
		srv := server.New(ctrl,
			server.WithHub(hub),
			server.WithLogger(logger),
			server.WithMonteCarloSettings(cfg.MonteCarlo),
		)
		if err := srv.Bootstrap(ctx, prices, cfg.Annuities); err != nil {
			return err
		}

		httpSrv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      middleware.Logger(srv.Router()),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Infof("btcannuity listening on %s", cfg.Server.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Infof("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	},
}
