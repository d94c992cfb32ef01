// Package memdb is an in-memory implementation of db.Database.
//
// It enforces the same constraints as the Postgres schema (one shift per
// date, cascade on member delete, history member ids nulled on delete) and
// publishes change notifications after each write commits.
package memdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/shift-calendar/pkg/changefeed"
	"github.com/jakechorley/shift-calendar/pkg/db"
)

// Store holds members, shifts and history in memory
type Store struct {
	mu      sync.RWMutex
	members map[string]db.Member
	shifts  map[string]db.Shift // keyed by shift date
	history []db.HistoryEntry
	now     func() time.Time
	lastTS  time.Time

	// FailNext, when set, is returned by the next write instead of applying it
	FailNext error

	hub *changefeed.Hub
}

var _ db.Database = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		members: make(map[string]db.Member),
		shifts:  make(map[string]db.Shift),
		now:     time.Now,
		hub:     changefeed.NewHub(nil),
	}
}

// Close ends all change feed subscriptions
func (s *Store) Close() {
	s.hub.Close()
}

// DropFeed simulates the change feed connection being lost. Current
// subscriptions end; later subscribers get a working feed again.
func (s *Store) DropFeed() {
	s.hub.Drop()
}

// timestamp returns a strictly increasing creation time. Callers hold mu.
func (s *Store) timestamp() time.Time {
	ts := s.now().UTC()
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = ts
	return ts
}

func (s *Store) takeFailure() error {
	if s.FailNext == nil {
		return nil
	}
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *Store) publish(entity string, ops ...changefeed.Op) {
	for _, op := range ops {
		s.hub.Publish(changefeed.Change{Entity: entity, Op: op})
	}
}

// Subscribe registers for change notifications on an entity
func (s *Store) Subscribe(ctx context.Context, entity string, ops ...changefeed.Op) (*changefeed.Subscription, error) {
	return s.hub.Subscribe(entity, ops...)
}

// ListMembers returns all members ordered by name
func (s *Store) ListMembers(ctx context.Context) ([]db.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]db.Member, 0, len(s.members))
	for _, m := range s.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name == members[j].Name {
			return members[i].ID < members[j].ID
		}
		return members[i].Name < members[j].Name
	})
	return members, nil
}

// GetMember returns a member by id
func (s *Store) GetMember(ctx context.Context, id string) (*db.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return nil, db.ErrMemberNotFound
	}
	return &m, nil
}

// InsertMember adds a member, assigning an id and creation time when missing
func (s *Store) InsertMember(ctx context.Context, member *db.Member) error {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	if _, exists := s.members[member.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("member %s already exists", member.ID)
	}
	member.CreatedAt = s.timestamp()
	s.members[member.ID] = *member
	s.mu.Unlock()

	s.publish(db.EntityMembers, changefeed.OpInsert)
	return nil
}

// UpdateMember replaces a member's editable fields
func (s *Store) UpdateMember(ctx context.Context, member *db.Member) error {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	existing, ok := s.members[member.ID]
	if !ok {
		s.mu.Unlock()
		return db.ErrMemberNotFound
	}
	member.CreatedAt = existing.CreatedAt
	s.members[member.ID] = *member
	s.mu.Unlock()

	s.publish(db.EntityMembers, changefeed.OpUpdate)
	return nil
}

// DeleteMember removes a member, its shifts, and clears it from history
func (s *Store) DeleteMember(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if _, ok := s.members[id]; !ok {
		s.mu.Unlock()
		return 0, db.ErrMemberNotFound
	}
	delete(s.members, id)

	removed := 0
	for date, shift := range s.shifts {
		if shift.MemberID == id {
			delete(s.shifts, date)
			removed++
		}
	}
	cleared := 0
	for i := range s.history {
		if s.history[i].MemberID == id {
			s.history[i].MemberID = ""
			cleared++
		}
	}
	s.mu.Unlock()

	s.publish(db.EntityMembers, changefeed.OpDelete)
	for i := 0; i < removed; i++ {
		s.publish(db.EntityShifts, changefeed.OpDelete)
	}
	for i := 0; i < cleared; i++ {
		s.publish(db.EntityHistory, changefeed.OpUpdate)
	}
	return removed, nil
}

// ListShifts returns every shift joined with its member, ordered by date
func (s *Store) ListShifts(ctx context.Context) ([]db.ShiftWithMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts := make([]db.ShiftWithMember, 0, len(s.shifts))
	for _, shift := range s.shifts {
		shifts = append(shifts, db.ShiftWithMember{Shift: shift, Member: s.members[shift.MemberID]})
	}
	sort.Slice(shifts, func(i, j int) bool {
		return shifts[i].ShiftDate < shifts[j].ShiftDate
	})
	return shifts, nil
}

// GetShiftByDate returns the shift for a date, or nil when the date is free
func (s *Store) GetShiftByDate(ctx context.Context, date string) (*db.ShiftWithMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, ok := s.shifts[date]
	if !ok {
		return nil, nil
	}
	return &db.ShiftWithMember{Shift: shift, Member: s.members[shift.MemberID]}, nil
}

// ApplyShiftMutation checks the caller's expectation against the current
// shift for the date and applies the delete/insert plus the history append
// under one lock.
func (s *Store) ApplyShiftMutation(ctx context.Context, mutation db.ShiftMutation) (*db.MutationResult, error) {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	current, hasCurrent := s.shifts[mutation.ShiftDate]
	switch {
	case mutation.ExpectedShiftID == "" && hasCurrent:
		s.mu.Unlock()
		return nil, db.ErrDateTaken
	case mutation.ExpectedShiftID != "" && !hasCurrent:
		s.mu.Unlock()
		return nil, db.ErrShiftNotFound
	case mutation.ExpectedShiftID != "" && current.ID != mutation.ExpectedShiftID:
		s.mu.Unlock()
		return nil, db.ErrShiftChanged
	}
	if mutation.NewMemberID != "" {
		if _, ok := s.members[mutation.NewMemberID]; !ok {
			s.mu.Unlock()
			return nil, db.ErrMemberNotFound
		}
	}

	var ops []changefeed.Op
	if hasCurrent {
		delete(s.shifts, mutation.ShiftDate)
		ops = append(ops, changefeed.OpDelete)
	}

	result := &db.MutationResult{}
	if mutation.NewMemberID != "" {
		shift := db.Shift{
			ID:        uuid.New().String(),
			MemberID:  mutation.NewMemberID,
			ShiftDate: mutation.ShiftDate,
			CreatedAt: s.timestamp(),
		}
		s.shifts[mutation.ShiftDate] = shift
		result.Shift = &shift
		ops = append(ops, changefeed.OpInsert)
	}

	entry := mutation.History
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.ShiftDate = mutation.ShiftDate
	entry.CreatedAt = s.timestamp()
	s.history = append(s.history, entry)
	result.History = entry
	s.mu.Unlock()

	s.publish(db.EntityShifts, ops...)
	s.publish(db.EntityHistory, changefeed.OpInsert)
	return result, nil
}

// ListHistory returns up to limit entries, newest first
func (s *Store) ListHistory(ctx context.Context, limit int) ([]db.HistoryEntry, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]db.HistoryEntry, 0, min(limit, len(s.history)))
	for i := len(s.history) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, s.history[i])
	}
	return entries, nil
}

// ListHistoryForDate returns all entries for a date, oldest first
func (s *Store) ListHistoryForDate(ctx context.Context, date string) ([]db.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []db.HistoryEntry
	for _, entry := range s.history {
		if entry.ShiftDate == date {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
