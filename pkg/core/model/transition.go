package model

import "github.com/jakechorley/shift-calendar/pkg/db"

// Intent is what the caller asked for on a day
type Intent string

const (
	IntentAssign Intent = "assign"
	IntentCancel Intent = "cancel"
)

func (i Intent) IsValid() bool {
	return i == IntentAssign || i == IntentCancel
}

// TransitionKind names the three ways a day's assignment can change
type TransitionKind string

const (
	KindAssignNew TransitionKind = "assign_new"
	KindReassign  TransitionKind = "reassign"
	KindCancel    TransitionKind = "cancel"
)

// Transition is one of AssignNew, Reassign or Cancel
type Transition interface {
	Kind() TransitionKind
	Date() string
	// Mutation returns the store write that applies the transition and records it
	Mutation() db.ShiftMutation
	// AffectedMember is the member the history entry is about
	AffectedMember() db.Member
}

// AssignNew assigns a member to a free day
type AssignNew struct {
	ShiftDate string
	Member    db.Member
}

func (t AssignNew) Kind() TransitionKind      { return KindAssignNew }
func (t AssignNew) Date() string              { return t.ShiftDate }
func (t AssignNew) AffectedMember() db.Member { return t.Member }

func (t AssignNew) Mutation() db.ShiftMutation {
	return db.ShiftMutation{
		ShiftDate:   t.ShiftDate,
		NewMemberID: t.Member.ID,
		History:     assignedEntry(t.ShiftDate, t.Member),
	}
}

// Reassign replaces the current shift with a new one. The member may be the
// same as before; that is still logged.
type Reassign struct {
	ShiftDate string
	Previous  db.ShiftWithMember
	Member    db.Member
}

func (t Reassign) Kind() TransitionKind      { return KindReassign }
func (t Reassign) Date() string              { return t.ShiftDate }
func (t Reassign) AffectedMember() db.Member { return t.Member }

func (t Reassign) Mutation() db.ShiftMutation {
	return db.ShiftMutation{
		ShiftDate:       t.ShiftDate,
		ExpectedShiftID: t.Previous.Shift.ID,
		NewMemberID:     t.Member.ID,
		History:         assignedEntry(t.ShiftDate, t.Member),
	}
}

// Cancel frees a day. The history entry names the previous assignee.
type Cancel struct {
	ShiftDate string
	Previous  db.ShiftWithMember
	Reason    string
}

func (t Cancel) Kind() TransitionKind      { return KindCancel }
func (t Cancel) Date() string              { return t.ShiftDate }
func (t Cancel) AffectedMember() db.Member { return t.Previous.Member }

func (t Cancel) Mutation() db.ShiftMutation {
	name := t.Previous.Member.Name
	if name == "" {
		name = UnknownMemberName
	}
	return db.ShiftMutation{
		ShiftDate:       t.ShiftDate,
		ExpectedShiftID: t.Previous.Shift.ID,
		History: db.HistoryEntry{
			MemberID:   t.Previous.MemberID,
			MemberName: name,
			ShiftDate:  t.ShiftDate,
			Action:     db.ActionCancelled,
			Reason:     t.Reason,
		},
	}
}

// UnknownMemberName is recorded when a member's name is not available
const UnknownMemberName = "Unknown"

func assignedEntry(date string, member db.Member) db.HistoryEntry {
	return db.HistoryEntry{
		MemberID:   member.ID,
		MemberName: member.Name,
		ShiftDate:  date,
		Action:     db.ActionAssigned,
	}
}
