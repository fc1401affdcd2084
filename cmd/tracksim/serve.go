package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rushteam/tracksim/api"
	"github.com/rushteam/tracksim/logging"
)

const shutdownTimeout = 15 * time.Second

var serveWarm bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveWarm {
			cfg.Catalog.Warmup = true
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		h := &api.Handler{
			Recommender: a.recommender,
			Resolver:    a.resolver,
			Weights:     a.index,
			Logger:      logging.Component("api"),
		}
		if a.history != nil {
			h.History = a.history
		}
		router := api.NewRouter(h, api.RouterOptions{
			RateLimit:   cfg.Server.RateLimit,
			CORSOrigins: cfg.Server.CORSOrigins,
			AdminToken:  cfg.Server.AdminToken,
			Logger:      logging.Component("http"),
		})

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			logging.Info().Str("addr", srv.Addr).Str("catalog", cfg.Catalog.Source).Msg("server listening")
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

		logging.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWarm, "warm", false, "build the catalog index before accepting requests")
	rootCmd.AddCommand(serveCmd)
}
