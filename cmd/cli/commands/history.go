package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/services"
	"github.com/jakechorley/shift-calendar/pkg/db"
)

// HistoryCmd creates the history command
func HistoryCmd(app *AppContext) *cobra.Command {
	var (
		limit int
		date  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit log of assignments and cancellations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("history command", zap.Int("limit", limit), zap.String("date", date))

			var (
				entries []db.HistoryEntry
				err     error
			)
			if date != "" {
				entries, err = services.DateHistory(app.Ctx, app.Database, app.Logger, date)
			} else {
				entries, err = services.ListHistory(app.Ctx, app.Database, app.Logger, limit)
			}
			if err != nil {
				return err
			}

			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", services.MaxHistoryLimit, "Number of recent entries to show (max 100)")
	cmd.Flags().StringVar(&date, "date", "", "Show every entry for one date (YYYY-MM-DD) instead")

	return cmd
}

func printHistory(w io.Writer, entries []db.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history yet.")
		return
	}

	fmt.Fprintf(w, "\n%d entries:\n\n", len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("  %s  %-10s %-9s %s",
			e.CreatedAt.Format("2006-01-02 15:04"), e.ShiftDate, e.Action, e.MemberName)
		if e.Reason != "" {
			line += fmt.Sprintf(" (%s)", e.Reason)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}
