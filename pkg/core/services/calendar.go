package services

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/jakechorley/shift-calendar/pkg/core/model"
)

// CalendarDay is one visible day of a month and whoever holds it
type CalendarDay struct {
	Date  time.Time
	Shift *model.DayShift // nil when free
}

// CalendarDays returns the days of month matched by rule, an RRULE string
// such as "FREQ=DAILY" or "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"
func CalendarDays(rule string, month time.Time) ([]time.Time, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid visible days rule: %w", err)
	}

	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	opt.Dtstart = start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid visible days rule: %w", err)
	}

	last := start.AddDate(0, 1, -1)
	return r.Between(start, last, true), nil
}

// BuildCalendar lays the day map over the visible days of month
func BuildCalendar(rule string, month time.Time, days model.DayMap) ([]CalendarDay, error) {
	dates, err := CalendarDays(rule, month)
	if err != nil {
		return nil, err
	}

	calendar := make([]CalendarDay, 0, len(dates))
	for _, d := range dates {
		day := CalendarDay{Date: d}
		if shift, ok := days[model.FormatDate(d)]; ok {
			day.Shift = &shift
		}
		calendar = append(calendar, day)
	}
	return calendar, nil
}
