package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/NewsGoat/internal/api"
	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/observability"
	"github.com/IshaanNene/NewsGoat/pkg/newsgoat"
)

var serveAddr string

// serveCmd creates the "serve" subcommand exposing runs over HTTP.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP API that runs crawls on request",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := loadRuntime()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metrics := observability.NewMetrics(logger)
			srv := api.NewServer(apiRunner(cfg, metrics, logger), metrics, logger)
			return srv.ListenAndServe(ctx, serveAddr)
		},
	}
	addRunFlags(cmd)
	cmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	return cmd
}

// apiRunner builds a fresh Crawler per request so request overrides never
// leak into the base config.
func apiRunner(base *config.Config, metrics *observability.Metrics, logger *slog.Logger) api.RunFunc {
	return func(ctx context.Context, req api.RunRequest) (*newsgoat.Report, error) {
		cfg := *base
		if req.WindowDays > 0 {
			cfg.Crawl.WindowDays = req.WindowDays
		}
		if req.Enrich != nil {
			cfg.AI.Enabled = *req.Enrich
		}

		crawler, err := newsgoat.New(&cfg, logger, newsgoat.WithMetrics(metrics))
		if err != nil {
			return nil, err
		}
		defer crawler.Close()
		return crawler.Run(ctx, req.Sources...)
	}
}
