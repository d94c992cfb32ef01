package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/model"
	"github.com/jakechorley/shift-calendar/pkg/db"
	"github.com/jakechorley/shift-calendar/pkg/memdb"
)

func TestAddMember(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	defer store.Close()

	member, err := AddMember(ctx, store, zap.NewNop(), MemberInput{Name: "  Alice  ", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, member.ID)
	assert.Equal(t, "Alice", member.Name)
	assert.Equal(t, model.DefaultColor, member.Color)

	member, err = AddMember(ctx, store, zap.NewNop(), MemberInput{Name: "Bob", Color: "#EC4899"})
	require.NoError(t, err)
	assert.Equal(t, "#ec4899", member.Color)

	members, err := ListMembers(ctx, store, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Alice", members[0].Name)
	assert.Equal(t, "Bob", members[1].Name)
}

func TestAddMember_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input MemberInput
		field string
	}{
		{"missing name", MemberInput{Name: "   "}, "name"},
		{"bad email", MemberInput{Name: "Alice", Email: "not-an-email"}, "email"},
		{"bad color", MemberInput{Name: "Alice", Color: "pink"}, "color"},
		{"short hex color", MemberInput{Name: "Alice", Color: "#fff"}, "color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memdb.New()
			defer store.Close()

			_, err := AddMember(context.Background(), store, zap.NewNop(), tt.input)
			require.Error(t, err)
			assert.Equal(t, KindValidation, ErrorKind(err))
			assert.Contains(t, err.Error(), tt.field)

			members, err := store.ListMembers(context.Background())
			require.NoError(t, err)
			assert.Empty(t, members)
		})
	}
}

func TestUpdateMember(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	defer store.Close()

	member, err := AddMember(ctx, store, zap.NewNop(), MemberInput{Name: "Alice"})
	require.NoError(t, err)

	updated, err := UpdateMember(ctx, store, zap.NewNop(), member.ID, MemberInput{Name: "Alice Smith", Phone: "0123", Color: "#22c55e"})
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", updated.Name)
	assert.Equal(t, "0123", updated.Phone)
	assert.Equal(t, member.CreatedAt, updated.CreatedAt)

	_, err = UpdateMember(ctx, store, zap.NewNop(), "missing", MemberInput{Name: "X"})
	assert.Equal(t, KindNotFound, ErrorKind(err))
}

func TestRemoveMember_CascadesShiftsAndKeepsHistoryNames(t *testing.T) {
	ctx := context.Background()
	store, alice, bob := newTestStore(t)
	assign(t, store, "2024-06-01", alice.ID)
	assign(t, store, "2024-06-02", alice.ID)
	assign(t, store, "2024-06-03", bob.ID)

	removed, err := RemoveMember(ctx, store, zap.NewNop(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	shifts, err := store.ListShifts(ctx)
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, bob.ID, shifts[0].MemberID)

	history, err := store.ListHistory(ctx, 100)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for _, entry := range history {
		if entry.MemberName == "Alice" {
			assert.Empty(t, entry.MemberID)
		} else {
			assert.Equal(t, bob.ID, entry.MemberID)
		}
	}

	_, err = RemoveMember(ctx, store, zap.NewNop(), alice.ID)
	assert.Equal(t, KindNotFound, ErrorKind(err))
}

func TestListMembers_StoreFailure(t *testing.T) {
	_, err := ListMembers(context.Background(), failingMemberStore{}, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, KindPersistence, ErrorKind(err))
}

type failingMemberStore struct {
	db.MemberStore
}

func (failingMemberStore) ListMembers(ctx context.Context) ([]db.Member, error) {
	return nil, assert.AnError
}
