package calendarclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
)

func TestConvertEvent(t *testing.T) {
	tests := []struct {
		name    string
		item    *calendar.Event
		want    Event
		wantErr bool
	}{
		{
			name: "timed event",
			item: &calendar.Event{
				Id:      "e1",
				Summary: "Team meeting",
				Start:   &calendar.EventDateTime{DateTime: "2024-06-01T09:00:00Z"},
				End:     &calendar.EventDateTime{DateTime: "2024-06-01T10:00:00Z"},
			},
			want: Event{
				ID:      "e1",
				Summary: "Team meeting",
				Start:   time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
				End:     time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "all day event",
			item: &calendar.Event{
				Id:      "e2",
				Summary: "Bank holiday",
				Start:   &calendar.EventDateTime{Date: "2024-05-27"},
				End:     &calendar.EventDateTime{Date: "2024-05-28"},
			},
			want: Event{
				ID:      "e2",
				Summary: "Bank holiday",
				Start:   time.Date(2024, 5, 27, 0, 0, 0, 0, time.UTC),
				End:     time.Date(2024, 5, 28, 0, 0, 0, 0, time.UTC),
				AllDay:  true,
			},
		},
		{
			name:    "missing start",
			item:    &calendar.Event{Id: "e3", End: &calendar.EventDateTime{Date: "2024-05-28"}},
			wantErr: true,
		},
		{
			name: "malformed date",
			item: &calendar.Event{
				Id:    "e4",
				Start: &calendar.EventDateTime{Date: "27/05/2024"},
				End:   &calendar.EventDateTime{Date: "2024-05-28"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertEvent(tt.item)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Start.Equal(got.Start))
			assert.True(t, tt.want.End.Equal(got.End))
			assert.Equal(t, tt.want.ID, got.ID)
			assert.Equal(t, tt.want.Summary, got.Summary)
			assert.Equal(t, tt.want.AllDay, got.AllDay)
		})
	}
}
