package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/notification"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormNotificationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormNotificationRepository(setupTestDB(t))
	orderID := uuid.New()

	first, err := notification.NewNotification(notification.TypeNewOrder, orderID, "ORD-1", "New order ORD-1")
	require.NoError(t, err)
	first.CreatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Save(ctx, first))

	second, err := notification.NewNotification(notification.TypeOrderUpdated, orderID, "ORD-1", "Order ORD-1 updated")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, second))

	t.Run("lists newest first", func(t *testing.T) {
		list, err := repo.FindAll(ctx, notification.ListFilter{})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)
	})

	t.Run("marking read persists", func(t *testing.T) {
		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.True(t, found.MarkRead())
		require.NoError(t, repo.Save(ctx, found))

		unread, err := repo.FindAll(ctx, notification.ListFilter{UnreadOnly: true})
		require.NoError(t, err)
		require.Len(t, unread, 1)
		assert.Equal(t, second.ID, unread[0].ID)
	})

	t.Run("mark all read", func(t *testing.T) {
		n, err := repo.MarkAllRead(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = repo.MarkAllRead(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		reloaded, err := repo.FindByID(ctx, second.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.IsRead)
		assert.NotNil(t, reloaded.ReadAt)
	})

	t.Run("limit", func(t *testing.T) {
		list, err := repo.FindAll(ctx, notification.ListFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
