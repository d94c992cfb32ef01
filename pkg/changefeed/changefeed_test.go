package changefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHub_DeliversToMatchingEntity(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	shifts, err := hub.Subscribe("shifts")
	require.NoError(t, err)
	members, err := hub.Subscribe("members")
	require.NoError(t, err)

	hub.Publish(Change{Entity: "shifts", Op: OpInsert})

	select {
	case c := <-shifts.C():
		assert.Equal(t, Change{Entity: "shifts", Op: OpInsert}, c)
	default:
		t.Fatal("expected shifts subscriber to receive change")
	}

	select {
	case c := <-members.C():
		t.Fatalf("members subscriber received unexpected change %v", c)
	default:
	}
}

func TestHub_FiltersByOp(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	sub, err := hub.Subscribe("shifts", OpDelete)
	require.NoError(t, err)

	hub.Publish(Change{Entity: "shifts", Op: OpInsert})
	hub.Publish(Change{Entity: "shifts", Op: OpDelete})

	require.Len(t, sub.C(), 1)
	c := <-sub.C()
	assert.Equal(t, OpDelete, c.Op)
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	sub, err := hub.Subscribe("shifts")
	require.NoError(t, err)

	for i := 0; i < subscriptionBuffer*2; i++ {
		hub.Publish(Change{Entity: "shifts", Op: OpUpdate})
	}

	assert.Len(t, sub.C(), subscriptionBuffer)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	sub, err := hub.Subscribe("shifts")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.SubscriberCount())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, hub.SubscriberCount())
	_, ok := <-sub.C()
	assert.False(t, ok, "channel should be closed")
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(nil)

	sub, err := hub.Subscribe("shifts")
	require.NoError(t, err)

	hub.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)

	// Closing the subscription after the hub must not panic
	sub.Close()

	_, err = hub.Subscribe("shifts")
	assert.ErrorIs(t, err, ErrClosed)

	// Publishing after close is a no-op
	hub.Publish(Change{Entity: "shifts", Op: OpInsert})
}

func TestHub_DropEndsSubscriptionsButAcceptsNewOnes(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	before, err := hub.Subscribe("shifts")
	require.NoError(t, err)

	hub.Drop()

	_, ok := <-before.C()
	assert.False(t, ok, "existing subscriber should see the drop")
	before.Close()

	after, err := hub.Subscribe("shifts")
	require.NoError(t, err)
	defer after.Close()

	hub.Publish(Change{Entity: "shifts", Op: OpInsert})
	assert.Equal(t, Change{Entity: "shifts", Op: OpInsert}, <-after.C())
	assert.Equal(t, 1, hub.SubscriberCount())
}

func TestParseOp(t *testing.T) {
	tests := []struct {
		in      string
		want    Op
		wantErr bool
	}{
		{"INSERT", OpInsert, false},
		{"update", OpUpdate, false},
		{"Delete", OpDelete, false},
		{"TRUNCATE", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			op, err := ParseOp(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, op)
		})
	}
}
