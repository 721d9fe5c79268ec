package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkordes/goat-attendance/internal/domain"
)

// StatusCmd returns the status command. With a TAG_ID it prints that tag's
// red-flag count; without one it lists the tags with the most red flags.
func StatusCmd(a *App) *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "status [TAG_ID]",
		Short: "Show accrued red-flag counts",
		Long: `Without arguments, lists attendance records with the most red flags first.
With a TAG_ID, shows that tag's count.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, closeStore, err := a.newDetector(ctx, a.Config, a.Logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if len(args) == 0 {
				return listStatus(ctx, cmd.OutOrStdout(), d, domain.NewPageRequest(page, limit))
			}

			rec, err := d.Attendance(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tag ID: %s, Red Flags: %s\n", rec.TagID, redFlags(rec.RedFlagCount))
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page to list")
	cmd.Flags().IntVar(&limit, "limit", domain.DefaultPageLimit, "records per page (max 100)")
	return cmd
}

func listStatus(ctx context.Context, w io.Writer, d Detector, p domain.PageRequest) error {
	result, err := d.ListAttendance(ctx, p)
	if err != nil {
		return err
	}
	if len(result.Records) == 0 {
		fmt.Fprintln(w, okColor.Sprint("No attendance records."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG ID\tRED FLAGS")
	for _, rec := range result.Records {
		fmt.Fprintf(tw, "%s\t%s\n", rec.TagID, redFlags(rec.RedFlagCount))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if result.HasMore() {
		fmt.Fprintf(w, "page %d, %d records in total; use --page %d for more\n", result.Page, result.Total, result.Page+1)
	}
	return nil
}

func redFlags(n int64) string {
	if n > 0 {
		return warnColor.Sprint(n)
	}
	return okColor.Sprint(n)
}
