package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/model"
	"github.com/jakechorley/shift-calendar/pkg/core/services"
	"github.com/jakechorley/shift-calendar/pkg/db"
)

// ListMembersCmd creates the listMembers command
func ListMembersCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listMembers",
		Short: "List the roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := services.ListMembers(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nFound %d members:\n\n", len(members))
			for _, m := range members {
				contact := m.Email
				if m.Phone != "" {
					if contact != "" {
						contact += ", "
					}
					contact += m.Phone
				}
				if !model.InPalette(m.Color) {
					contact += " [custom colour " + m.Color + "]"
				}
				fmt.Fprintf(out, "- %s%s%s (%s) %s\n", ansiColor(m.Color), m.Name, colorReset, m.ID, contact)
			}
			fmt.Fprintln(out)

			return nil
		},
	}
}

// AddMemberCmd creates the addMember command
func AddMemberCmd(app *AppContext) *cobra.Command {
	var input services.MemberInput

	cmd := &cobra.Command{
		Use:   "addMember",
		Short: "Add a member to the roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			member, err := services.AddMember(app.Ctx, app.Database, app.Logger, input)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Added %s (%s)\n\n", member.Name, member.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&input.Email, "email", "", "Email address for notifications")
	cmd.Flags().StringVar(&input.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&input.Color, "color", model.DefaultColor, "Calendar colour as #rrggbb")

	return cmd
}

// EditMemberCmd creates the editMember command. Only the flags given are changed.
func EditMemberCmd(app *AppContext) *cobra.Command {
	var input services.MemberInput

	cmd := &cobra.Command{
		Use:   "editMember <member_id>",
		Short: "Change a member's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			current, err := app.Database.GetMember(app.Ctx, id)
			if errors.Is(err, db.ErrMemberNotFound) {
				return &services.NotFoundError{Message: fmt.Sprintf("member %s not found", id)}
			}
			if err != nil {
				return fmt.Errorf("failed to fetch member: %w", err)
			}

			flags := cmd.Flags()
			if !flags.Changed("name") {
				input.Name = current.Name
			}
			if !flags.Changed("email") {
				input.Email = current.Email
			}
			if !flags.Changed("phone") {
				input.Phone = current.Phone
			}
			if !flags.Changed("color") {
				input.Color = current.Color
			}

			member, err := services.UpdateMember(app.Ctx, app.Database, app.Logger, id, input)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Updated %s (%s)\n\n", member.Name, member.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Name, "name", "", "New display name")
	cmd.Flags().StringVar(&input.Email, "email", "", "New email address")
	cmd.Flags().StringVar(&input.Phone, "phone", "", "New phone number")
	cmd.Flags().StringVar(&input.Color, "color", "", "New calendar colour as #rrggbb")

	return cmd
}

// RemoveMemberCmd creates the removeMember command
func RemoveMemberCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "removeMember <member_id>",
		Short: "Remove a member and their shifts (history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := services.RemoveMember(app.Ctx, app.Database, app.Logger, args[0])
			if err != nil {
				return err
			}

			app.Logger.Debug("removeMember command", zap.String("id", args[0]), zap.Int("shifts_removed", removed))
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Removed member %s and %d shifts\n\n", args[0], removed)
			return nil
		},
	}
}
