package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ExternalCalendarCmd creates the externalCalendar command
func ExternalCalendarCmd(app *AppContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "externalCalendar",
		Short: "List upcoming events from the configured Google Calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Cfg.ExternalCalendarID == "" {
				return errors.New("externalCalendarID is not configured")
			}
			if days < 1 {
				return fmt.Errorf("days must be a positive integer, got: %d", days)
			}

			client, err := app.CalendarClient()
			if err != nil {
				return err
			}

			events, err := client.ListUpcoming(app.Ctx, app.Cfg.ExternalCalendarID, time.Now(), days)
			if err != nil {
				return err
			}
			app.Logger.Debug("Fetched external events", zap.Int("count", len(events)))

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintf(out, "No events in the next %d days.\n", days)
				return nil
			}

			fmt.Fprintf(out, "\nUpcoming events (next %d days):\n\n", days)
			for _, e := range events {
				when := e.Start.Format("Mon 02 Jan 15:04")
				if e.AllDay {
					when = e.Start.Format("Mon 02 Jan") + "      "
				}
				fmt.Fprintf(out, "  %s  %s\n", when, e.Summary)
			}
			fmt.Fprintln(out)

			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 14, "How many days ahead to look")

	return cmd
}
