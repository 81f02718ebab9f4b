package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/s3conform"
	httpAdapter "github.com/aretw0/s3conform/pkg/adapters/http"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/aretw0/s3conform/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored reports, metrics and run events over HTTP",
	Long: `Exposes /reports, /metrics, /events (SSE) and POST /runs, which runs every
configured suite and stores the reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}
		streams := httpAdapter.NewStreamManager()

		runner, err := s3conform.New(cfg,
			s3conform.WithLogger(logger),
			s3conform.WithHooks(metrics.Hooks()),
			s3conform.WithHooks(streams.Hooks()),
		)
		if err != nil {
			return err
		}
		defer runner.Close()

		run := func(ctx context.Context) ([]*domain.RunReport, error) {
			res, err := runner.Run(ctx)
			if res == nil {
				return nil, err
			}
			return res.Reports, err
		}
		handler := httpAdapter.NewHandler(runner.Store(),
			httpAdapter.WithGatherer(reg),
			httpAdapter.WithStreams(streams),
			httpAdapter.WithRunFunc(run),
			httpAdapter.WithVersion(s3conform.Version),
			httpAdapter.WithLogger(logger),
		)

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("starting s3conform server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "error", err)
				return srv.Close()
			}
			logger.Info("server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
