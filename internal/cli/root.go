// Package cli implements the attendance command-line interface.
// Each command is built by a constructor that receives the shared App, and
// cmd/attendance adds them to the root command.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pkordes/goat-attendance/internal/config"
	"github.com/pkordes/goat-attendance/internal/domain"
	"github.com/pkordes/goat-attendance/internal/repo"
	"github.com/pkordes/goat-attendance/internal/service"
)

// Detector is the part of service.AbsenceDetector the commands use.
type Detector interface {
	Run(ctx context.Context, windowHours int) (domain.AbsenceReport, error)
	Attendance(ctx context.Context, tagID string) (domain.AttendanceRecord, error)
	ListAttendance(ctx context.Context, p domain.PageRequest) (domain.AttendancePage, error)
}

// DetectorFactory opens the store and returns a detector bound to it plus a
// function that releases the store.
type DetectorFactory func(ctx context.Context, cfg config.Config, log *slog.Logger, opts ...service.DetectorOption) (Detector, func(), error)

// App carries the state shared by every command: configuration loaded once
// in the root command's PersistentPreRunE and the logger built from it.
type App struct {
	Config config.Config
	Logger *slog.Logger

	envFile     string
	newDetector DetectorFactory
}

// Option customizes an App.
type Option func(*App)

// WithDetectorFactory replaces how commands obtain a Detector.
func WithDetectorFactory(f DetectorFactory) Option {
	return func(a *App) { a.newDetector = f }
}

// NewApp returns an App that opens a Postgres pool for every command.
func NewApp(opts ...Option) *App {
	a := &App{newDetector: PostgresDetector}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RootCmd returns the root command with every subcommand attached.
func RootCmd(a *App, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "attendance",
		Short:   "Goat tag absence detection",
		Version: version,
		Long: `attendance checks how many vital readings every active goat tag sent in a
rolling window, accrues red flags for tags that under-reported and prints
the absent tags together with their goat, farmer and hub.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(RunCmd(a))
	cmd.AddCommand(ServeCmd(a))
	cmd.AddCommand(MigrateCmd(a))
	cmd.AddCommand(StatusCmd(a))
	return cmd
}

// Execute runs root and prints a failure to its error stream. Commands never
// print their own errors.
func Execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if err != nil {
		printError(root.ErrOrStderr(), err)
	}
	return err
}

// load reads .env and the environment and builds the JSON logger on w.
func (a *App) load(w io.Writer) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	a.Config = cfg
	a.Logger = newLogger(w, cfg.SlogLevel())
	slog.SetDefault(a.Logger)
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// PostgresDetector is the production DetectorFactory. It opens a pgx pool,
// verifies the database is reachable and builds a service.AbsenceDetector on it.
func PostgresDetector(ctx context.Context, cfg config.Config, log *slog.Logger, opts ...service.DetectorOption) (Detector, func(), error) {
	pool, err := OpenPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	base := []service.DetectorOption{
		service.WithLogger(log),
		service.WithLocation(cfg.Location),
	}
	d := service.NewAbsenceDetector(repo.NewTxRunner(pool), append(base, opts...)...)
	return d, pool.Close, nil
}

// OpenPool creates a pgx pool and pings it. Failures wrap domain.ErrConnection.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cli.OpenPool: %w: %w", domain.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cli.OpenPool: ping: %w: %w", domain.ErrConnection, err)
	}
	return pool, nil
}
