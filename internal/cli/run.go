package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pkordes/goat-attendance/internal/domain"
	"github.com/pkordes/goat-attendance/internal/report"
)

// RunCmd returns the run command: one detection run, report on stdout.
func RunCmd(a *App) *cobra.Command {
	var (
		windowHours int
		format      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run absence detection once and print the report",
		Long: `Counts readings per active tag over the last --window-hours hours, accrues
the shortfall of every under-reporting tag and prints the absent tags.

Exits non-zero when the run fails; a failed run leaves no partial writes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("window-hours") {
				windowHours = a.Config.WindowHours
			}

			ctx := cmd.Context()
			d, closeStore, err := a.newDetector(ctx, a.Config, a.Logger)
			if err != nil {
				return err
			}
			defer closeStore()

			rep, err := d.Run(ctx, windowHours)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), rep, f)
		},
	}

	cmd.Flags().IntVarP(&windowHours, "window-hours", "w", 2, "length of the inspected window in hours (default from WINDOW_HOURS)")
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatText), "output format: text, json or csv")
	return cmd
}

// writeReport renders rep on w. Text output highlights the header.
func writeReport(w io.Writer, rep domain.AbsenceReport, f report.Format) error {
	switch f {
	case report.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report.JSON(rep))
	case report.FormatCSV:
		return report.WriteCSV(w, rep)
	default:
		if rep.Empty() {
			_, err := fmt.Fprintln(w, okColor.Sprint(report.NoneMessage(rep.WindowHours)))
			return err
		}
		if _, err := fmt.Fprintln(w, warnColor.Sprint(report.Header(rep.WindowHours))); err != nil {
			return err
		}
		for _, line := range report.Lines(rep) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	}
}
