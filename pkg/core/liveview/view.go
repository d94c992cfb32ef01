// Package liveview keeps a session's calendar in step with the store.
//
// A Synchronizer fetches members and shifts in bulk, then refetches the whole
// view whenever the change feed reports any change to shifts. Views are
// replaced wholesale and never mutated after they are published.
package liveview

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jakechorley/shift-calendar/pkg/core/model"
	"github.com/jakechorley/shift-calendar/pkg/db"
)

// Source defines the store operations the live view needs
type Source interface {
	ListMembers(ctx context.Context) ([]db.Member, error)
	ListShifts(ctx context.Context) ([]db.ShiftWithMember, error)
	db.ChangeFeed
}

// View is one consistent snapshot of the roster and the calendar
type View struct {
	Members   []db.Member  `json:"members"`
	Days      model.DayMap `json:"days"`
	FetchedAt time.Time    `json:"fetched_at"`

	shifts map[string]db.ShiftWithMember
}

// Shift returns the shift held on date, or nil when the day is free
func (v *View) Shift(date string) *db.ShiftWithMember {
	s, ok := v.shifts[date]
	if !ok {
		return nil
	}
	return &s
}

// Member returns the roster entry with id, or nil
func (v *View) Member(id string) *db.Member {
	for i := range v.Members {
		if v.Members[i].ID == id {
			m := v.Members[i]
			return &m
		}
	}
	return nil
}

// Fetch reads members and shifts concurrently and builds a view from them
func Fetch(ctx context.Context, source Source) (*View, error) {
	var members []db.Member
	var shifts []db.ShiftWithMember

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = source.ListMembers(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch members: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		shifts, err = source.ListShifts(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch shifts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDate := make(map[string]db.ShiftWithMember, len(shifts))
	for _, s := range shifts {
		byDate[s.ShiftDate] = s
	}

	return &View{
		Members:   members,
		Days:      model.BuildDayMap(shifts),
		FetchedAt: time.Now().UTC(),
		shifts:    byDate,
	}, nil
}
