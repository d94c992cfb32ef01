package model

import (
	"fmt"
	"time"

	"github.com/jakechorley/shift-calendar/pkg/db"
)

// DateLayout is the format of every shift date
const DateLayout = "2006-01-02"

// DayMap maps a shift date to the shift occupying it
type DayMap map[string]DayShift

// DayShift is the display form of one occupied day
type DayShift struct {
	ShiftID    string `json:"shift_id"`
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name"`
	Color      string `json:"color"`
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate formats a time as a calendar date, dropping the time of day
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseMonth parses a YYYY-MM month and returns its first day in UTC
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return t, nil
}

// BuildDayMap indexes shifts by date for display
func BuildDayMap(shifts []db.ShiftWithMember) DayMap {
	days := make(DayMap, len(shifts))
	for _, s := range shifts {
		days[s.ShiftDate] = DayShift{
			ShiftID:    s.Shift.ID,
			MemberID:   s.MemberID,
			MemberName: s.Member.Name,
			Color:      s.Member.Color,
		}
	}
	return days
}
