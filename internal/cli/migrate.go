package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"text/tabwriter"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/pkordes/goat-attendance/internal/domain"
	"github.com/pkordes/goat-attendance/migrations"
)

// MigrateCmd returns the migrate command. It applies the embedded schema
// migrations with goose.
func MigrateCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or list schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			return a.migrate(cmd.Context(), cmd.OutOrStdout(), direction)
		},
	}
}

func (a *App) migrate(ctx context.Context, w io.Writer, direction string) error {
	db, err := sql.Open("pgx", a.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("cli.migrate: open: %w: %w", domain.ErrConnection, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cli.migrate: ping: %w: %w", domain.ErrConnection, err)
	}

	provider, err := migrations.NewProvider(db)
	if err != nil {
		return fmt.Errorf("cli.migrate: create goose provider: %w", err)
	}

	switch direction {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("cli.migrate: up: %w", err)
		}
		if len(results) == 0 {
			fmt.Fprintln(w, okColor.Sprint("schema is up to date"))
		}
		for _, r := range results {
			printResult(w, r)
		}
	case "down":
		r, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("cli.migrate: down: %w", err)
		}
		printResult(w, r)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("cli.migrate: status: %w", err)
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
		for _, s := range statuses {
			state := warnColor.Sprint(s.State)
			applied := "-"
			if s.State == goose.StateApplied {
				state = okColor.Sprint(s.State)
				applied = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, state, applied, s.Source.Path)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("cli.migrate: %w: unknown direction %q", domain.ErrInvalidArgument, direction)
	}
	return nil
}

func printResult(w io.Writer, r *goose.MigrationResult) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "%s %s %s (%s)\n", okColor.Sprint("OK"), r.Direction, r.Source.Path, r.Duration.Round(1e6))
}
