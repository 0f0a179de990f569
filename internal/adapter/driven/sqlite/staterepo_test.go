package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/smspanel/internal/domain/model"
)

func TestStateRepo_Get_Unset(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStateRepo(db)

	state, err := repo.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, state.LastSeenCount)
	assert.Equal(t, 0, state.UnseenCount)
	assert.False(t, state.BadgeActive)
}

func TestStateRepo_SaveThenGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStateRepo(db)
	ctx := context.Background()

	err := repo.Save(ctx, model.NotificationState{
		LastSeenCount: 12,
		UnseenCount:   4,
		BadgeActive:   true,
	})
	require.NoError(t, err)

	state, err := repo.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 12, state.LastSeenCount)
	assert.Equal(t, 4, state.UnseenCount)
	assert.True(t, state.BadgeActive)
	assert.False(t, state.UpdatedAt.IsZero())
}

func TestStateRepo_Save_Overwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStateRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.NotificationState{LastSeenCount: 5, UnseenCount: 2, BadgeActive: true}))
	require.NoError(t, repo.Save(ctx, model.NotificationState{LastSeenCount: 8, UnseenCount: 0, BadgeActive: false}))

	state, err := repo.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 8, state.LastSeenCount)
	assert.Equal(t, 0, state.UnseenCount)
	assert.False(t, state.BadgeActive)

	var count int
	err = db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification_state`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "state table holds a single row")
}
