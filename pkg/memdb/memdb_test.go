package memdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/shift-calendar/pkg/changefeed"
	"github.com/jakechorley/shift-calendar/pkg/db"
)

func addMember(t *testing.T, s *Store, name string) db.Member {
	t.Helper()
	m := &db.Member{Name: name, Color: "#6366f1"}
	require.NoError(t, s.InsertMember(context.Background(), m))
	return *m
}

func TestApplyShiftMutation_EnforcesExpectation(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	alice := addMember(t, s, "Alice")

	res, err := s.ApplyShiftMutation(ctx, db.ShiftMutation{
		ShiftDate:   "2024-06-01",
		NewMemberID: alice.ID,
		History:     db.HistoryEntry{MemberID: alice.ID, MemberName: "Alice", Action: db.ActionAssigned},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Shift)

	// Expecting a free date when one exists
	_, err = s.ApplyShiftMutation(ctx, db.ShiftMutation{ShiftDate: "2024-06-01", NewMemberID: alice.ID})
	assert.ErrorIs(t, err, db.ErrDateTaken)

	// Expecting a different shift
	_, err = s.ApplyShiftMutation(ctx, db.ShiftMutation{ShiftDate: "2024-06-01", ExpectedShiftID: "other"})
	assert.ErrorIs(t, err, db.ErrShiftChanged)

	// Expecting a shift on a free date
	_, err = s.ApplyShiftMutation(ctx, db.ShiftMutation{ShiftDate: "2024-06-02", ExpectedShiftID: "gone"})
	assert.ErrorIs(t, err, db.ErrShiftNotFound)

	// Unknown member
	_, err = s.ApplyShiftMutation(ctx, db.ShiftMutation{ShiftDate: "2024-06-03", NewMemberID: "nobody"})
	assert.ErrorIs(t, err, db.ErrMemberNotFound)

	history, err := s.ListHistory(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, history, 1, "failed mutations must not append history")
}

func TestDeleteMember_CascadesAndNullifies(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	alice := addMember(t, s, "Alice")
	bob := addMember(t, s, "Bob")

	for _, date := range []string{"2024-06-01", "2024-06-02"} {
		_, err := s.ApplyShiftMutation(ctx, db.ShiftMutation{
			ShiftDate:   date,
			NewMemberID: alice.ID,
			History:     db.HistoryEntry{MemberID: alice.ID, MemberName: "Alice", Action: db.ActionAssigned},
		})
		require.NoError(t, err)
	}
	_, err := s.ApplyShiftMutation(ctx, db.ShiftMutation{
		ShiftDate:   "2024-06-03",
		NewMemberID: bob.ID,
		History:     db.HistoryEntry{MemberID: bob.ID, MemberName: "Bob", Action: db.ActionAssigned},
	})
	require.NoError(t, err)

	removed, err := s.DeleteMember(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	shifts, err := s.ListShifts(ctx)
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, bob.ID, shifts[0].MemberID)

	history, err := s.ListHistory(ctx, 100)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for _, entry := range history {
		if entry.MemberName == "Alice" {
			assert.Empty(t, entry.MemberID)
		} else {
			assert.Equal(t, bob.ID, entry.MemberID)
		}
	}
}

func TestListHistory_NewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	alice := addMember(t, s, "Alice")

	dates := []string{"2024-06-01", "2024-06-02", "2024-06-03"}
	for _, date := range dates {
		_, err := s.ApplyShiftMutation(ctx, db.ShiftMutation{
			ShiftDate:   date,
			NewMemberID: alice.ID,
			History:     db.HistoryEntry{MemberID: alice.ID, MemberName: "Alice", Action: db.ActionAssigned},
		})
		require.NoError(t, err)
	}

	history, err := s.ListHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-06-03", history[0].ShiftDate)
	assert.Equal(t, "2024-06-02", history[1].ShiftDate)
	assert.True(t, history[0].CreatedAt.After(history[1].CreatedAt))

	_, err = s.ListHistory(ctx, 0)
	assert.Error(t, err)
}

func TestSubscribe_SeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	alice := addMember(t, s, "Alice")

	sub, err := s.Subscribe(ctx, db.EntityShifts)
	require.NoError(t, err)
	defer sub.Close()

	_, err = s.ApplyShiftMutation(ctx, db.ShiftMutation{
		ShiftDate:   "2024-06-01",
		NewMemberID: alice.ID,
		History:     db.HistoryEntry{MemberID: alice.ID, MemberName: "Alice", Action: db.ActionAssigned},
	})
	require.NoError(t, err)

	require.Len(t, sub.C(), 1)
	c := <-sub.C()
	assert.Equal(t, changefeed.Change{Entity: db.EntityShifts, Op: changefeed.OpInsert}, c)
}
