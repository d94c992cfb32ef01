// Package calendarclient reads events from a Google Calendar. It never writes.
package calendarclient

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Event is an upcoming calendar entry
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// Client wraps the Calendar API client
type Client struct {
	service *calendar.Service
}

// NewClient creates a Calendar client from an OAuth config and token
func NewClient(ctx context.Context, oauthConfig *oauth2.Config, token *oauth2.Token) (*Client, error) {
	service, err := calendar.NewService(ctx, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Client{service: service}, nil
}

// ListUpcoming returns single events of calendarID starting between from and
// from+days, ordered by start time
func (c *Client) ListUpcoming(ctx context.Context, calendarID string, from time.Time, days int) ([]Event, error) {
	var events []Event
	call := c.service.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(from.AddDate(0, 0, days).Format(time.RFC3339)).
		MaxResults(250)

	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			event, err := convertEvent(item)
			if err != nil {
				return err
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}

func convertEvent(item *calendar.Event) (Event, error) {
	event := Event{ID: item.Id, Summary: item.Summary}

	start, allDay, err := parseEventTime(item.Start)
	if err != nil {
		return Event{}, fmt.Errorf("event %s has invalid start: %w", item.Id, err)
	}
	end, _, err := parseEventTime(item.End)
	if err != nil {
		return Event{}, fmt.Errorf("event %s has invalid end: %w", item.Id, err)
	}

	event.Start, event.End, event.AllDay = start, end, allDay
	return event, nil
}

// parseEventTime reads either the timed or the all-day form
func parseEventTime(t *calendar.EventDateTime) (time.Time, bool, error) {
	if t == nil {
		return time.Time{}, false, fmt.Errorf("missing time")
	}
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		return parsed, false, err
	}
	parsed, err := time.Parse("2006-01-02", t.Date)
	return parsed, true, err
}
