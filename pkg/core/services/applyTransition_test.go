package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/model"
	"github.com/jakechorley/shift-calendar/pkg/db"
	"github.com/jakechorley/shift-calendar/pkg/memdb"
	"github.com/jakechorley/shift-calendar/pkg/metrics"
)

const testDate = "2024-06-01"

func newTestStore(t *testing.T) (*memdb.Store, db.Member, db.Member) {
	t.Helper()
	store := memdb.New()
	t.Cleanup(store.Close)

	alice := db.Member{Name: "Alice", Color: model.DefaultColor, Email: "alice@example.com"}
	bob := db.Member{Name: "Bob", Color: "#ec4899"}
	require.NoError(t, store.InsertMember(context.Background(), &alice))
	require.NoError(t, store.InsertMember(context.Background(), &bob))
	return store, alice, bob
}

func assign(t *testing.T, store *memdb.Store, date, memberID string) *TransitionResult {
	t.Helper()
	current, err := store.GetShiftByDate(context.Background(), date)
	require.NoError(t, err)
	res, err := ApplyTransition(context.Background(), store, zap.NewNop(), TransitionRequest{
		Intent:   model.IntentAssign,
		Date:     date,
		MemberID: memberID,
		Current:  current,
	})
	require.NoError(t, err)
	return res
}

func TestApplyTransition_AssignNew(t *testing.T) {
	ctx := context.Background()
	store, alice, _ := newTestStore(t)

	res, err := ApplyTransition(ctx, store, zap.NewNop(), TransitionRequest{
		Intent:   model.IntentAssign,
		Date:     testDate,
		MemberID: alice.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, model.KindAssignNew, res.Kind)
	require.NotNil(t, res.Shift)
	assert.Equal(t, alice.ID, res.Shift.MemberID)

	shift, err := store.GetShiftByDate(ctx, testDate)
	require.NoError(t, err)
	require.NotNil(t, shift)
	assert.Equal(t, "Alice", shift.Member.Name)

	history, err := store.ListHistory(ctx, 100)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, db.ActionAssigned, history[0].Action)
	assert.Equal(t, "Alice", history[0].MemberName)
	assert.Equal(t, alice.ID, history[0].MemberID)
	assert.Equal(t, testDate, history[0].ShiftDate)
	assert.Empty(t, history[0].Reason)
}

func TestApplyTransition_ReassignLogsNewMember(t *testing.T) {
	ctx := context.Background()
	store, alice, bob := newTestStore(t)
	first := assign(t, store, testDate, alice.ID)

	current, err := store.GetShiftByDate(ctx, testDate)
	require.NoError(t, err)

	res, err := ApplyTransition(ctx, store, zap.NewNop(), TransitionRequest{
		Intent:   model.IntentAssign,
		Date:     testDate,
		MemberID: bob.ID,
		Current:  current,
	})
	require.NoError(t, err)
	assert.Equal(t, model.KindReassign, res.Kind)
	assert.NotEqual(t, first.Shift.ID, res.Shift.ID)

	shifts, err := store.ListShifts(ctx)
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, bob.ID, shifts[0].MemberID)

	history, err := store.ListHistory(ctx, 100)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Bob", history[0].MemberName)
	assert.Equal(t, db.ActionAssigned, history[0].Action)
	assert.Equal(t, "Alice", history[1].MemberName)
}

func TestApplyTransition_ReassignSameMemberIsLogged(t *testing.T) {
	ctx := context.Background()
	store, alice, _ := newTestStore(t)
	assign(t, store, testDate, alice.ID)

	res := assign(t, store, testDate, alice.ID)
	assert.Equal(t, model.KindReassign, res.Kind)

	history, err := store.ListHistory(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestApplyTransition_CancelLogsPreviousMemberAndReason(t *testing.T) {
	ctx := context.Background()
	store, alice, _ := newTestStore(t)
	assign(t, store, testDate, alice.ID)

	current, err := store.GetShiftByDate(ctx, testDate)
	require.NoError(t, err)

	res, err := ApplyTransition(ctx, store, zap.NewNop(), TransitionRequest{
		Intent:   model.IntentCancel,
		Date:     testDate,
		MemberID: "ignored",
		Reason:   "Sick leave",
		Current:  current,
	})
	require.NoError(t, err)
	assert.Equal(t, model.KindCancel, res.Kind)
	assert.Nil(t, res.Shift)

	shift, err := store.GetShiftByDate(ctx, testDate)
	require.NoError(t, err)
	assert.Nil(t, shift)

	history, err := store.ListHistory(ctx, 100)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, db.ActionCancelled, history[0].Action)
	assert.Equal(t, "Alice", history[0].MemberName)
	assert.Equal(t, alice.ID, history[0].MemberID)
	assert.Equal(t, "Sick leave", history[0].Reason)
}

func TestApplyTransition_CancelByShiftIDLoadsPreviousMember(t *testing.T) {
	ctx := context.Background()
	store, alice, _ := newTestStore(t)
	first := assign(t, store, testDate, alice.ID)

	_, err := ApplyTransition(ctx, store, zap.NewNop(), TransitionRequest{
		Intent:  model.IntentCancel,
		Date:    testDate,
		Current: &db.ShiftWithMember{Shift: db.Shift{ID: first.Shift.ID}},
	})
	require.NoError(t, err)

	history, err := store.ListHistoryForDate(ctx, testDate)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Alice", history[1].MemberName)
	assert.Equal(t, db.ActionCancelled, history[1].Action)
}

func TestApplyTransition_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		setup    func(t *testing.T, store *memdb.Store, alice, bob db.Member) TransitionRequest
		wantKind string
	}{
		{
			name: "assign without member",
			setup: func(t *testing.T, store *memdb.Store, alice, bob db.Member) TransitionRequest {
				return TransitionRequest{Intent: model.IntentAssign, Date: testDate}
			},
			wantKind: KindValidation,
		},
		{
			name: "unknown member",
			setup: func(t *testing.T, store *memdb.Store, alice, bob db.Member) TransitionRequest {
				return TransitionRequest{Intent: model.IntentAssign, Date: testDate, MemberID: "nobody"}
			},
			wantKind: KindValidation,
		},
		{
			name: "malformed date",
			setup: func(t *testing.T, store *memdb.Store, alice, bob db.Member) TransitionRequest {
				return TransitionRequest{Intent: model.IntentAssign, Date: "01/06/2024", MemberID: alice.ID}
			},
			wantKind: KindValidation,
		},
		{
			name: "unknown intent",
			setup: func(t *testing.T, store *memdb.Store, alice, bob db.Member) TransitionRequest {
				return TransitionRequest{Intent: "swap", Date: testDate, MemberID: alice.ID}
			},
			wantKind: KindValidation,
		},
		{
			name: "cancel with no current shift",
			setup: func(t *testing.T, store *memdb.Store, alice, bob db.Member) TransitionRequest {
				return TransitionRequest{Intent: model.IntentCancel, Date: testDate}
			},
			wantKind: KindNotFound,
		},
		{
			name: "cancel a shift that was already removed",
			setup: func(t *testing.T, store *memdb.Store, alice, bob db.Member) TransitionRequest {
				res := assign(t, store, testDate, alice.ID)
				stale := &db.ShiftWithMember{Shift: *res.Shift, Member: alice}
				_, err := ApplyTransition(ctx, store, zap.NewNop(), TransitionRequest{Intent: model.IntentCancel, Date: testDate, Current: stale})
				require.NoError(t, err)
				return TransitionRequest{Intent: model.IntentCancel, Date: testDate, Current: stale}
			},
			wantKind: KindNotFound,
		},
		{
			name: "assign over a shift the caller never saw",
			setup: func(t *testing.T, store *memdb.Store, alice, bob db.Member) TransitionRequest {
				assign(t, store, testDate, alice.ID)
				return TransitionRequest{Intent: model.IntentAssign, Date: testDate, MemberID: bob.ID}
			},
			wantKind: KindConflict,
		},
		{
			name: "reassign a shift that was replaced",
			setup: func(t *testing.T, store *memdb.Store, alice, bob db.Member) TransitionRequest {
				res := assign(t, store, testDate, alice.ID)
				stale := &db.ShiftWithMember{Shift: *res.Shift, Member: alice}
				assign(t, store, testDate, bob.ID)
				return TransitionRequest{Intent: model.IntentAssign, Date: testDate, MemberID: alice.ID, Current: stale}
			},
			wantKind: KindConflict,
		},
		{
			name: "current shift on another date",
			setup: func(t *testing.T, store *memdb.Store, alice, bob db.Member) TransitionRequest {
				res := assign(t, store, "2024-06-02", alice.ID)
				other := &db.ShiftWithMember{Shift: *res.Shift, Member: alice}
				return TransitionRequest{Intent: model.IntentCancel, Date: testDate, Current: other}
			},
			wantKind: KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, alice, bob := newTestStore(t)
			req := tt.setup(t, store, alice, bob)

			before, err := store.ListHistory(ctx, 100)
			require.NoError(t, err)

			res, err := ApplyTransition(ctx, store, zap.NewNop(), req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.wantKind, ErrorKind(err))

			after, err := store.ListHistory(ctx, 100)
			require.NoError(t, err)
			assert.Len(t, after, len(before), "failed transitions must not append history")
		})
	}
}

func TestApplyTransition_PersistenceFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	store, alice, _ := newTestStore(t)
	store.FailNext = errors.New("connection reset")

	_, err := ApplyTransition(ctx, store, zap.NewNop(), TransitionRequest{
		Intent:   model.IntentAssign,
		Date:     testDate,
		MemberID: alice.ID,
	})
	require.Error(t, err)

	var persistenceErr *PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
	assert.Contains(t, err.Error(), "connection reset")

	shift, err := store.GetShiftByDate(ctx, testDate)
	require.NoError(t, err)
	assert.Nil(t, shift)
	history, err := store.ListHistory(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestApplyTransition_ConcurrentAssignsKeepOneShift(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	defer store.Close()

	const writers = 8
	members := make([]db.Member, writers)
	for i := range members {
		members[i] = db.Member{Name: string(rune('A' + i)), Color: model.DefaultColor}
		require.NoError(t, store.InsertMember(ctx, &members[i]))
	}

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ApplyTransition(ctx, store, zap.NewNop(), TransitionRequest{
				Intent:   model.IntentAssign,
				Date:     testDate,
				MemberID: members[i].ID,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, KindConflict, ErrorKind(err))
	}
	assert.Equal(t, 1, succeeded)

	shifts, err := store.ListShifts(ctx)
	require.NoError(t, err)
	assert.Len(t, shifts, 1)
	history, err := store.ListHistory(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

type recordingNotifier struct {
	mu      sync.Mutex
	members []db.Member
	entries []db.HistoryEntry
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, member db.Member, entry db.HistoryEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.members = append(n.members, member)
	n.entries = append(n.entries, entry)
	return n.err
}

func TestEngine_NotifiesAffectedMember(t *testing.T) {
	ctx := context.Background()
	store, alice, bob := newTestStore(t)
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	engine := NewEngine(store, zap.NewNop(), WithNotifier(notifier))

	_, err := engine.Apply(ctx, TransitionRequest{Intent: model.IntentAssign, Date: testDate, MemberID: alice.ID})
	require.NoError(t, err, "notification failures are not returned")

	current, err := store.GetShiftByDate(ctx, testDate)
	require.NoError(t, err)
	_, err = engine.Apply(ctx, TransitionRequest{Intent: model.IntentAssign, Date: testDate, MemberID: bob.ID, Current: current})
	require.NoError(t, err)

	current, err = store.GetShiftByDate(ctx, testDate)
	require.NoError(t, err)
	_, err = engine.Apply(ctx, TransitionRequest{Intent: model.IntentCancel, Date: testDate, Reason: "Sick leave", Current: current})
	require.NoError(t, err)

	require.Len(t, notifier.members, 3)
	assert.Equal(t, "Alice", notifier.members[0].Name)
	assert.Equal(t, "Bob", notifier.members[1].Name)
	assert.Equal(t, "Bob", notifier.members[2].Name)
	assert.Equal(t, db.ActionCancelled, notifier.entries[2].Action)
}

func TestEngine_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	store, alice, _ := newTestStore(t)
	reg := prometheus.NewRegistry()
	engine := NewEngine(store, zap.NewNop(), WithMetrics(metrics.New(reg)))

	_, err := engine.Apply(ctx, TransitionRequest{Intent: model.IntentAssign, Date: testDate, MemberID: alice.ID})
	require.NoError(t, err)
	_, err = engine.Apply(ctx, TransitionRequest{Intent: model.IntentCancel, Date: "2024-06-02"})
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			counts[mf.GetName()] += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counts["shift_calendar_transitions_total"])
	assert.Equal(t, 1.0, counts["shift_calendar_transition_failures_total"])
}

func TestPlanTransition(t *testing.T) {
	ctx := context.Background()
	store, alice, bob := newTestStore(t)
	engine := NewEngine(store, zap.NewNop())
	current := &db.ShiftWithMember{
		Shift:  db.Shift{ID: "shift-1", MemberID: alice.ID, ShiftDate: testDate},
		Member: alice,
	}

	tr, err := engine.PlanTransition(ctx, TransitionRequest{Intent: model.IntentAssign, Date: testDate, MemberID: bob.ID})
	require.NoError(t, err)
	assert.IsType(t, model.AssignNew{}, tr)

	tr, err = engine.PlanTransition(ctx, TransitionRequest{Intent: model.IntentAssign, Date: testDate, MemberID: bob.ID, Current: current})
	require.NoError(t, err)
	require.IsType(t, model.Reassign{}, tr)
	assert.Equal(t, "shift-1", tr.Mutation().ExpectedShiftID)

	tr, err = engine.PlanTransition(ctx, TransitionRequest{Intent: model.IntentCancel, Date: testDate, Reason: "Holiday", Current: current})
	require.NoError(t, err)
	require.IsType(t, model.Cancel{}, tr)
	assert.Equal(t, "Holiday", tr.Mutation().History.Reason)
	assert.Empty(t, tr.Mutation().NewMemberID)
}
