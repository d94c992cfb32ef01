package db

import "time"

// Action tags a history entry with the kind of transition it records
type Action string

const (
	ActionAssigned  Action = "assigned"
	ActionCancelled Action = "cancelled"
)

// Member represents a roster member who can be assigned to a day
type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"` // nullable
	Phone     string    `json:"phone,omitempty"` // nullable
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Shift represents the assignment of one member to one calendar date
type Shift struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id"`
	ShiftDate string    `json:"shift_date"` // YYYY-MM-DD
	CreatedAt time.Time `json:"created_at"`
}

// ShiftWithMember is a shift joined with its assignee
type ShiftWithMember struct {
	Shift
	Member Member `json:"member"`
}

// HistoryEntry is an immutable audit record of one transition
type HistoryEntry struct {
	ID         string    `json:"id"`
	MemberID   string    `json:"member_id,omitempty"` // nullable, cleared when the member is deleted
	MemberName string    `json:"member_name"`
	ShiftDate  string    `json:"shift_date"`
	Action     Action    `json:"action"`
	Reason     string    `json:"reason,omitempty"` // nullable
	CreatedAt  time.Time `json:"created_at"`
}

// ShiftMutation describes one atomic change to a date's shift together with
// the history entry that records it.
//
// ExpectedShiftID is the shift the caller believes currently occupies the
// date ("" when it believes the date is free). NewMemberID is the member to
// insert a shift for ("" when the date should end up free).
type ShiftMutation struct {
	ShiftDate       string
	ExpectedShiftID string
	NewMemberID     string
	History         HistoryEntry
}

// MutationResult is returned by a committed ShiftMutation
type MutationResult struct {
	Shift   *Shift // nil when the date was freed
	History HistoryEntry
}
