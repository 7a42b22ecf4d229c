package wellness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationsListAndUnreadCount(t *testing.T) {
	store := newFakeStore()
	store.seed(tableNotifications,
		Notification{ID: "n1", UserID: "user-1", Title: "Welcome", Read: true},
		Notification{ID: "n2", UserID: "user-1", Title: "Daily check-in"},
		Notification{ID: "n3", UserID: "user-1", Title: "New feature"},
	)
	deps, _, _ := testDeps(store)
	svc := NewNotificationsService(deps)
	defer svc.Close()

	assert.Zero(t, svc.UnreadCount(), "count is zero before any load")

	notifications, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, notifications, 3)
	assert.Equal(t, 2, svc.UnreadCount())
}

func TestNotificationsMarkRead(t *testing.T) {
	store := newFakeStore()
	store.seed(tableNotifications,
		Notification{ID: "n1", UserID: "user-1", Title: "Daily check-in"},
	)
	deps, _, _ := testDeps(store)
	svc := NewNotificationsService(deps)
	defer svc.Close()

	_, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, svc.UnreadCount())

	require.NoError(t, svc.MarkRead(context.Background(), "n1"))
	assert.Equal(t, 1, store.updates)
	assert.Zero(t, svc.UnreadCount())
}

func TestNotificationsMarkAllRead(t *testing.T) {
	store := newFakeStore()
	store.seed(tableNotifications,
		Notification{ID: "n1", UserID: "user-1"},
		Notification{ID: "n2", UserID: "user-1"},
	)
	deps, _, _ := testDeps(store)
	svc := NewNotificationsService(deps)
	defer svc.Close()

	_, err := svc.List(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.MarkAllRead(context.Background()))
	assert.Zero(t, svc.UnreadCount())
}

func TestNotificationsOfflineRejectsWrites(t *testing.T) {
	store := newFakeStore()
	deps, monitor, _ := testDeps(store)
	svc := NewNotificationsService(deps)
	defer svc.Close()

	monitor.SetOffline()
	assert.ErrorIs(t, svc.MarkRead(context.Background(), "n1"), ErrOffline)
	assert.ErrorIs(t, svc.MarkAllRead(context.Background()), ErrOffline)
	assert.Zero(t, store.updates)
}

func TestNotificationsChangeFeedReload(t *testing.T) {
	store := newFakeStore()
	feed := newFakeFeed()
	deps, _, _ := testDeps(store)
	deps.Feed = feed
	svc := NewNotificationsService(deps)
	defer svc.Close()

	store.seed(tableNotifications, Notification{ID: "n1", UserID: "user-1"})
	feed.fire(tableNotifications)

	assert.Eventually(t, func() bool {
		return svc.UnreadCount() == 1
	}, time.Second, 5*time.Millisecond)
}
