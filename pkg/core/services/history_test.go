package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/db"
)

type limitRecordingStore struct {
	db.HistoryStore
	limit int
}

func (s *limitRecordingStore) ListHistory(ctx context.Context, limit int) ([]db.HistoryEntry, error) {
	s.limit = limit
	return nil, nil
}

func TestListHistory_Limit(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{0, MaxHistoryLimit},
		{-5, MaxHistoryLimit},
		{20, 20},
		{100, 100},
		{500, MaxHistoryLimit},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.requested), func(t *testing.T) {
			store := &limitRecordingStore{}
			_, err := ListHistory(context.Background(), store, zap.NewNop(), tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.want, store.limit)
		})
	}
}

func TestListHistory_NewestFirstAndCapped(t *testing.T) {
	ctx := context.Background()
	store, alice, bob := newTestStore(t)

	for i := 0; i < 60; i++ {
		assign(t, store, "2024-06-01", alice.ID)
		assign(t, store, "2024-06-01", bob.ID)
	}

	entries, err := ListHistory(ctx, store, zap.NewNop(), 0)
	require.NoError(t, err)
	require.Len(t, entries, MaxHistoryLimit)
	assert.Equal(t, "Bob", entries[0].MemberName)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt))
	}
}

func TestDateHistory(t *testing.T) {
	ctx := context.Background()
	store, alice, bob := newTestStore(t)
	assign(t, store, "2024-06-01", alice.ID)
	assign(t, store, "2024-06-02", bob.ID)
	assign(t, store, "2024-06-01", bob.ID)

	entries, err := DateHistory(ctx, store, zap.NewNop(), "2024-06-01")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].MemberName)
	assert.Equal(t, "Bob", entries[1].MemberName)

	_, err = DateHistory(ctx, store, zap.NewNop(), "June 1st")
	assert.Equal(t, KindValidation, ErrorKind(err))
}
