package commands

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/liveview"
	"github.com/jakechorley/shift-calendar/pkg/core/model"
	"github.com/jakechorley/shift-calendar/pkg/core/services"
)

// CalendarCmd creates the calendar command
func CalendarCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar [YYYY-MM]",
		Short: "Show who holds each visible day of a month (defaults to this month)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := monthArg(args)
			if err != nil {
				return err
			}

			view, err := liveview.Fetch(app.Ctx, app.Database)
			if err != nil {
				return fmt.Errorf("failed to load calendar: %w", err)
			}

			return renderCalendar(cmd.OutOrStdout(), app.Cfg.VisibleDays, month, view)
		},
	}
}

// WatchCmd creates the watch command
func WatchCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [YYYY-MM]",
		Short: "Keep a month on screen, redrawing whenever a shift changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := monthArg(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			syncer := liveview.New(app.Database, app.Logger, liveview.WithMetrics(app.Metrics))
			syncer.OnUpdate(func(view *liveview.View) {
				fmt.Fprint(out, "\033[H\033[2J")
				if err := renderCalendar(out, app.Cfg.VisibleDays, month, view); err != nil {
					app.Logger.Error("Failed to render calendar", zap.Error(err))
				}
				fmt.Fprintln(out, "Watching for changes, press Ctrl+C to stop")
			})

			if err := syncer.Start(ctx); err != nil {
				return err
			}
			defer syncer.Stop()

			select {
			case <-ctx.Done():
				return nil
			case <-syncer.Done():
				if err := syncer.Err(); err != nil {
					return fmt.Errorf("live updates stopped: %w", err)
				}
				return nil
			}
		},
	}
}

func monthArg(args []string) (time.Time, error) {
	if len(args) == 0 {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	return model.ParseMonth(args[0])
}

// renderCalendar prints one line per visible day, with the holder's name
// drawn in their colour
func renderCalendar(w io.Writer, rule string, month time.Time, view *liveview.View) error {
	days, err := services.BuildCalendar(rule, month, view.Days)
	if err != nil {
		return err
	}

	title := month.Format("January 2006")
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("=", len(title)))

	assigned := 0
	for _, day := range days {
		label := day.Date.Format("Mon 02")
		if day.Shift == nil {
			fmt.Fprintf(w, "  %s  %s\n", label, colorDim+"-"+colorReset)
			continue
		}
		assigned++
		fmt.Fprintf(w, "  %s  %s%s%s\n", label, ansiColor(day.Shift.Color), day.Shift.MemberName, colorReset)
	}

	fmt.Fprintf(w, "\n%d of %d days assigned\n\n", assigned, len(days))
	return nil
}

const (
	colorReset = "\033[0m"
	colorDim   = "\033[2m"
)

// ansiColor converts a #rrggbb colour to a 24-bit foreground escape
func ansiColor(hex string) string {
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return ""
	}
	return fmt.Sprintf("\033[38;2;%d;%d;%dm", r, g, b)
}
