package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/model"
	"github.com/jakechorley/shift-calendar/pkg/db"
	"github.com/jakechorley/shift-calendar/pkg/metrics"
)

// TransitionStore defines the database operations needed to apply a transition
type TransitionStore interface {
	GetMember(ctx context.Context, id string) (*db.Member, error)
	GetShiftByDate(ctx context.Context, date string) (*db.ShiftWithMember, error)
	ApplyShiftMutation(ctx context.Context, mutation db.ShiftMutation) (*db.MutationResult, error)
}

// TransitionRequest is a request to change who holds a day.
//
// Current is the shift the caller last saw for Date, nil when it saw the day
// free. When only its ID is known the rest is loaded from the store.
type TransitionRequest struct {
	Intent   model.Intent
	Date     string
	MemberID string // ignored for cancellations
	Reason   string // ignored for assignments
	Current  *db.ShiftWithMember
}

// TransitionResult describes a committed transition
type TransitionResult struct {
	Kind    model.TransitionKind `json:"kind"`
	Shift   *db.Shift            `json:"shift"` // nil after a cancellation
	History db.HistoryEntry      `json:"history"`
}

// Notifier is told about every committed transition
type Notifier interface {
	Notify(ctx context.Context, member db.Member, entry db.HistoryEntry) error
}

// Engine applies transitions against a store
type Engine struct {
	store    TransitionStore
	logger   *zap.Logger
	metrics  *metrics.Metrics
	notifier Notifier
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithMetrics records applied and failed transitions
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithNotifier notifies the affected member after each commit
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) {
		e.notifier = n
	}
}

// NewEngine creates an engine writing to store
func NewEngine(store TransitionStore, logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyTransition applies a single transition without metrics or notifications
func ApplyTransition(ctx context.Context, store TransitionStore, logger *zap.Logger, req TransitionRequest) (*TransitionResult, error) {
	return NewEngine(store, logger).Apply(ctx, req)
}

// Apply plans the transition for req and commits it together with its
// history entry. Either both writes happen or neither does.
func (e *Engine) Apply(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	e.logger.Debug("Applying transition",
		zap.String("intent", string(req.Intent)),
		zap.String("date", req.Date),
		zap.String("member_id", req.MemberID))

	transition, err := e.PlanTransition(ctx, req)
	if err != nil {
		e.metrics.TransitionFailed(string(req.Intent), ErrorKind(err))
		return nil, err
	}

	kind := string(transition.Kind())
	res, err := e.store.ApplyShiftMutation(ctx, transition.Mutation())
	if err != nil {
		err = mapStoreError(err, transition)
		e.metrics.TransitionFailed(kind, ErrorKind(err))
		e.logger.Warn("Transition rejected",
			zap.String("kind", kind),
			zap.String("date", transition.Date()),
			zap.Error(err))
		return nil, err
	}

	e.metrics.TransitionApplied(kind)
	e.logger.Info("Transition applied",
		zap.String("kind", kind),
		zap.String("date", transition.Date()),
		zap.String("member", res.History.MemberName),
		zap.String("history_id", res.History.ID))

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, transition.AffectedMember(), res.History); err != nil {
			e.logger.Warn("Failed to notify member",
				zap.String("member_id", transition.AffectedMember().ID),
				zap.Error(err))
		}
	}

	return &TransitionResult{
		Kind:    transition.Kind(),
		Shift:   res.Shift,
		History: res.History,
	}, nil
}

// PlanTransition validates req and decides which transition it is:
// no current shift and assign is AssignNew, a current shift and assign is
// Reassign (even for the same member), a current shift and cancel is Cancel.
func (e *Engine) PlanTransition(ctx context.Context, req TransitionRequest) (model.Transition, error) {
	if !req.Intent.IsValid() {
		return nil, validationErrorf("unknown intent %q", req.Intent)
	}
	if _, err := model.ParseDate(req.Date); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	current, err := e.resolveCurrent(ctx, req)
	if err != nil {
		return nil, err
	}

	switch req.Intent {
	case model.IntentCancel:
		if current == nil {
			return nil, &NotFoundError{Message: fmt.Sprintf("no shift to cancel on %s", req.Date)}
		}
		return model.Cancel{ShiftDate: req.Date, Previous: *current, Reason: req.Reason}, nil
	default:
		if req.MemberID == "" {
			return nil, validationErrorf("a member is required to assign %s", req.Date)
		}
		member, err := e.store.GetMember(ctx, req.MemberID)
		if errors.Is(err, db.ErrMemberNotFound) {
			return nil, validationErrorf("unknown member %s", req.MemberID)
		}
		if err != nil {
			return nil, &PersistenceError{Op: "fetch member", Err: err}
		}
		if current == nil {
			return model.AssignNew{ShiftDate: req.Date, Member: *member}, nil
		}
		return model.Reassign{ShiftDate: req.Date, Previous: *current, Member: *member}, nil
	}
}

// resolveCurrent fills in a current shift known only by id. The store still
// re-checks the id when the mutation commits.
func (e *Engine) resolveCurrent(ctx context.Context, req TransitionRequest) (*db.ShiftWithMember, error) {
	current := req.Current
	if current == nil || current.Shift.ID == "" {
		return nil, nil
	}
	if current.ShiftDate != "" && current.ShiftDate != req.Date {
		return nil, validationErrorf("shift %s is not on %s", current.Shift.ID, req.Date)
	}
	if current.Member.Name != "" {
		return current, nil
	}

	stored, err := e.store.GetShiftByDate(ctx, req.Date)
	if err != nil {
		return nil, &PersistenceError{Op: "fetch current shift", Err: err}
	}
	if stored == nil {
		return nil, &NotFoundError{Message: fmt.Sprintf("shift %s no longer exists", current.Shift.ID)}
	}
	if stored.Shift.ID != current.Shift.ID {
		return nil, &ConflictError{Message: fmt.Sprintf("%s was changed by someone else", req.Date)}
	}
	return stored, nil
}

func mapStoreError(err error, t model.Transition) error {
	switch {
	case errors.Is(err, db.ErrShiftNotFound):
		return &NotFoundError{Message: fmt.Sprintf("shift on %s no longer exists", t.Date())}
	case errors.Is(err, db.ErrShiftChanged), errors.Is(err, db.ErrDateTaken):
		return &ConflictError{Message: fmt.Sprintf("%s was changed by someone else", t.Date())}
	case errors.Is(err, db.ErrMemberNotFound):
		return validationErrorf("unknown member %s", t.AffectedMember().ID)
	default:
		return &PersistenceError{Op: "apply " + string(t.Kind()), Err: err}
	}
}
