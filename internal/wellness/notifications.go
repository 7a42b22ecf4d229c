package wellness

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/backend"
)

// NotificationsService manages the user's in-app notification feed.
type NotificationsService struct {
	deps    *Deps
	logger  *zap.Logger
	cache   cache[[]Notification]
	watcher watcher
}

// NewNotificationsService creates the notifications service and wires
// it to the change feed for the signed-in user.
func NewNotificationsService(deps Deps) *NotificationsService {
	deps.applyDefaults()
	s := &NotificationsService{
		deps:   &deps,
		logger: deps.Logger.Named("notifications"),
	}
	s.watcher.start(s.deps, tableNotifications, s.reload, func() { s.cache.reset(nil) })
	return s
}

// List returns the user's notifications, newest first.
func (s *NotificationsService) List(ctx context.Context) ([]Notification, error) {
	if s.cache.isClosed() {
		return nil, ErrClosed
	}
	userID := s.deps.State.UserID()
	if userID == "" {
		return nil, ErrNotSignedIn
	}

	cached, _ := s.cache.snapshot()
	if !s.deps.reachable() {
		return cached, nil
	}
	if !s.cache.beginLoad() {
		return cached, nil
	}
	defer s.cache.endLoad()

	notifications, err := call(ctx, s.deps, func(ctx context.Context) ([]Notification, error) {
		q := ownedQuery(userID)
		q.OrderBy, q.Descending = "created_at", true
		rows, err := s.deps.Store.Select(ctx, tableNotifications, q)
		if err != nil {
			return nil, err
		}
		return decodeRows[Notification](rows)
	})
	if err != nil {
		s.deps.surface("notifications.list", err)
		return cached, err
	}

	s.cache.replace(notifications)
	return notifications, nil
}

// UnreadCount reports how many cached notifications are unread. It
// never touches the network; List or the change feed keep the snapshot
// current.
func (s *NotificationsService) UnreadCount() int {
	cached, _ := s.cache.snapshot()
	n := 0
	for _, notification := range cached {
		if !notification.Read {
			n++
		}
	}
	return n
}

// MarkRead flags one notification as read.
func (s *NotificationsService) MarkRead(ctx context.Context, id string) error {
	userID := s.deps.State.UserID()
	if userID == "" {
		return ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return ErrOffline
	}

	_, err := call(ctx, s.deps, func(ctx context.Context) (struct{}, error) {
		q := ownedQuery(userID, backend.Eq("id", id))
		return struct{}{}, s.deps.Store.Update(ctx, tableNotifications, q, map[string]any{"read": true})
	})
	if err != nil {
		s.deps.surface("notifications.read", err)
		return err
	}

	s.mutateCached(func(notifications []Notification) []Notification {
		for i := range notifications {
			if notifications[i].ID == id {
				notifications[i].Read = true
			}
		}
		return notifications
	})
	return nil
}

// MarkAllRead flags every notification as read.
func (s *NotificationsService) MarkAllRead(ctx context.Context) error {
	userID := s.deps.State.UserID()
	if userID == "" {
		return ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return ErrOffline
	}

	_, err := call(ctx, s.deps, func(ctx context.Context) (struct{}, error) {
		q := ownedQuery(userID, backend.Eq("read", "false"))
		return struct{}{}, s.deps.Store.Update(ctx, tableNotifications, q, map[string]any{"read": true})
	})
	if err != nil {
		s.deps.surface("notifications.read", err)
		return err
	}

	s.mutateCached(func(notifications []Notification) []Notification {
		for i := range notifications {
			notifications[i].Read = true
		}
		return notifications
	})
	return nil
}

// Close stops the watcher and blocks further state writes.
func (s *NotificationsService) Close() {
	s.watcher.stop()
	s.cache.close()
}

func (s *NotificationsService) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.List(ctx); err != nil && err != ErrSessionExpired {
		s.logger.Debug("background reload failed", zap.Error(err))
	}
}

func (s *NotificationsService) mutateCached(fn func([]Notification) []Notification) {
	cached, _ := s.cache.snapshot()
	next := make([]Notification, len(cached))
	copy(next, cached)
	s.cache.replace(fn(next))
}
