package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/pkordes/goat-attendance/internal/handler"
	"github.com/pkordes/goat-attendance/internal/metrics"
	"github.com/pkordes/goat-attendance/internal/scheduler"
	"github.com/pkordes/goat-attendance/internal/service"
)

// shutdownTimeout bounds how long in-flight requests and a running detection
// may take to finish once a stop signal arrives.
const shutdownTimeout = 15 * time.Second

// ServeCmd returns the serve command: the cron scheduler plus the HTTP API.
func ServeCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run absence detection on a schedule and serve the HTTP API",
		Long: `Starts the scheduler (SCHEDULE, evaluated in TIMEZONE) and an HTTP server on
PORT exposing /healthz, /runs, /attendance/{tagID}, /metrics and /openapi.yaml.
Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The server logs to stdout like any long-running service.
			a.Logger = newLogger(os.Stdout, a.Config.SlogLevel())
			return a.serve(cmd.Context())
		},
	}
}

func (a *App) serve(ctx context.Context) error {
	cfg, log := a.Config, a.Logger

	// --- Metrics ----------------------------------------------------------
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	runMetrics, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("cli.serve: register metrics: %w", err)
	}

	// --- Database ---------------------------------------------------------
	d, closeStore, err := a.newDetector(ctx, cfg, log, service.WithObserver(runMetrics))
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return err
	}
	defer closeStore()
	log.Info("database connection established")

	// --- Scheduler --------------------------------------------------------
	sched, err := scheduler.New(cfg.Schedule, d, cfg.WindowHours,
		scheduler.WithLogger(log),
		scheduler.WithLocation(cfg.Location),
	)
	if err != nil {
		return err
	}
	if cfg.RunOnStart {
		sched.RunOnce(ctx)
	}
	sched.Start()

	// --- HTTP Server ------------------------------------------------------
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handler.NewRouter(handler.NewServer(d, cfg.WindowHours, registry), handler.RouterOptions{
			Logger:      log,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-serveErr:
		log.Error("server error", "error", err)
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		runErr = errors.Join(runErr, err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("scheduler stop error", "error", err)
		runErr = errors.Join(runErr, err)
	}
	log.Info("server stopped")
	return runErr
}
