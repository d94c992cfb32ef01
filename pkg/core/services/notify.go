package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/db"
)

// EmailSender sends a plain text email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// EmailNotifier emails members when they are assigned to or cancelled from a day
type EmailNotifier struct {
	sender EmailSender
	logger *zap.Logger
}

// NewEmailNotifier creates a notifier sending through sender
func NewEmailNotifier(sender EmailSender, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{sender: sender, logger: logger}
}

// Notify emails member about entry. Members without an email are skipped.
func (n *EmailNotifier) Notify(ctx context.Context, member db.Member, entry db.HistoryEntry) error {
	if member.Email == "" {
		n.logger.Debug("Member has no email, skipping notification", zap.String("member_id", member.ID))
		return nil
	}

	subject, body := notificationContent(member, entry)
	if err := n.sender.SendEmail(ctx, member.Email, subject, body); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	n.logger.Debug("Notification sent",
		zap.String("member_id", member.ID),
		zap.String("action", string(entry.Action)),
		zap.String("date", entry.ShiftDate))
	return nil
}

func notificationContent(member db.Member, entry db.HistoryEntry) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", member.Name)

	var subject string
	switch entry.Action {
	case db.ActionCancelled:
		subject = fmt.Sprintf("Shift cancelled: %s", entry.ShiftDate)
		fmt.Fprintf(&b, "Your shift on %s has been cancelled.\n", entry.ShiftDate)
		if entry.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", entry.Reason)
		}
	default:
		subject = fmt.Sprintf("Shift assigned: %s", entry.ShiftDate)
		fmt.Fprintf(&b, "You have been assigned the shift on %s.\n", entry.ShiftDate)
	}
	return subject, b.String()
}
