package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/liveview"
	"github.com/jakechorley/shift-calendar/pkg/core/model"
	"github.com/jakechorley/shift-calendar/pkg/core/services"
)

// AssignCmd creates the assign command
func AssignCmd(app *AppContext) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "assign <date> <member_id>",
		Short: "Assign a member to a day, replacing whoever holds it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("assign command",
				zap.String("date", args[0]),
				zap.String("member_id", args[1]))

			return runTransition(cmd, app, services.TransitionRequest{
				Intent:   model.IntentAssign,
				Date:     args[0],
				MemberID: args[1],
			}, notify)
		},
	}

	cmd.Flags().BoolVar(&notify, "notify", false, "Email the assigned member")

	return cmd
}

// CancelCmd creates the cancel command
func CancelCmd(app *AppContext) *cobra.Command {
	var (
		reason string
		notify bool
	)

	cmd := &cobra.Command{
		Use:   "cancel <date>",
		Short: "Free a day, logging the previous member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("cancel command",
				zap.String("date", args[0]),
				zap.String("reason", reason))

			return runTransition(cmd, app, services.TransitionRequest{
				Intent: model.IntentCancel,
				Date:   args[0],
				Reason: reason,
			}, notify)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the shift was cancelled")
	cmd.Flags().BoolVar(&notify, "notify", false, "Email the member who held the day")

	return cmd
}

// runTransition reads the day as it stands now and applies req against it
func runTransition(cmd *cobra.Command, app *AppContext, req services.TransitionRequest, notify bool) error {
	view, err := liveview.Fetch(app.Ctx, app.Database)
	if err != nil {
		return fmt.Errorf("failed to load calendar: %w", err)
	}
	req.Current = view.Shift(req.Date)

	engine, err := app.engineFor(notify)
	if err != nil {
		return err
	}

	result, err := engine.Apply(app.Ctx, req)
	if err != nil {
		return err
	}

	printTransition(cmd.OutOrStdout(), result)
	return nil
}

func printTransition(w io.Writer, result *services.TransitionResult) {
	entry := result.History
	switch result.Kind {
	case model.KindAssignNew:
		fmt.Fprintf(w, "\n✓ %s assigned to %s\n", entry.MemberName, entry.ShiftDate)
	case model.KindReassign:
		fmt.Fprintf(w, "\n✓ %s reassigned to %s\n", entry.ShiftDate, entry.MemberName)
	case model.KindCancel:
		fmt.Fprintf(w, "\n✓ Cancelled %s's shift on %s\n", entry.MemberName, entry.ShiftDate)
		if entry.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", entry.Reason)
		}
	}
	if result.Shift != nil {
		fmt.Fprintf(w, "  Shift ID: %s\n", result.Shift.ID)
	}
	fmt.Fprintln(w)
}
