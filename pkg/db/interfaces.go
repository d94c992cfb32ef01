package db

import (
	"context"

	"github.com/jakechorley/shift-calendar/pkg/changefeed"
)

// Entity names used by the change feed
const (
	EntityMembers = "members"
	EntityShifts  = "shifts"
	EntityHistory = "history"
)

// MemberStore defines the interface for roster database operations
type MemberStore interface {
	ListMembers(ctx context.Context) ([]Member, error)
	GetMember(ctx context.Context, id string) (*Member, error)
	InsertMember(ctx context.Context, member *Member) error
	UpdateMember(ctx context.Context, member *Member) error
	// DeleteMember removes the member and returns how many shifts were cascaded
	DeleteMember(ctx context.Context, id string) (int, error)
}

// ShiftStore defines the interface for shift database operations
type ShiftStore interface {
	ListShifts(ctx context.Context) ([]ShiftWithMember, error)
	GetShiftByDate(ctx context.Context, date string) (*ShiftWithMember, error)
	// ApplyShiftMutation applies the shift change and its history entry as one unit
	ApplyShiftMutation(ctx context.Context, mutation ShiftMutation) (*MutationResult, error)
}

// HistoryStore defines the interface for audit log reads
type HistoryStore interface {
	// ListHistory returns the most recent entries, newest first
	ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error)
	// ListHistoryForDate returns every entry for a date, oldest first
	ListHistoryForDate(ctx context.Context, date string) ([]HistoryEntry, error)
}

// ChangeFeed delivers bare change notifications scoped by entity and operation
type ChangeFeed interface {
	Subscribe(ctx context.Context, entity string, ops ...changefeed.Op) (*changefeed.Subscription, error)
}

// Database defines the interface for all database operations.
// Both postgres.DB and memdb.Store implement this interface.
type Database interface {
	MemberStore
	ShiftStore
	HistoryStore
	ChangeFeed
}
