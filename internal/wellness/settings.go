package wellness

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/backend"
)

// defaultSettings are served before the first successful load and for
// users who never saved any.
func defaultSettings(userID string) Settings {
	return Settings{
		UserID:               userID,
		Language:             "en",
		VoiceEnabled:         true,
		NotificationsEnabled: true,
	}
}

// SettingsService manages per-user preferences.
type SettingsService struct {
	deps    *Deps
	logger  *zap.Logger
	cache   cache[Settings]
	watcher watcher
}

// NewSettingsService creates the settings service.
func NewSettingsService(deps Deps) *SettingsService {
	deps.applyDefaults()
	s := &SettingsService{
		deps:   &deps,
		logger: deps.Logger.Named("settings"),
	}
	s.watcher.start(s.deps, tableUserSettings, s.reload, func() { s.cache.reset(Settings{}) })
	return s
}

// Get returns the user's settings, defaults when nothing is stored or
// the backend is unreachable before the first load.
func (s *SettingsService) Get(ctx context.Context) (Settings, error) {
	if s.cache.isClosed() {
		return Settings{}, ErrClosed
	}
	userID := s.deps.State.UserID()
	if userID == "" {
		return Settings{}, ErrNotSignedIn
	}

	cached, loaded := s.cache.snapshot()
	if !s.deps.reachable() {
		if !loaded {
			return defaultSettings(userID), nil
		}
		return cached, nil
	}
	if !s.cache.beginLoad() {
		if !loaded {
			return defaultSettings(userID), nil
		}
		return cached, nil
	}
	defer s.cache.endLoad()

	settings, err := call(ctx, s.deps, func(ctx context.Context) (Settings, error) {
		rows, err := s.deps.Store.Select(ctx, tableUserSettings, ownedQuery(userID))
		if err != nil {
			return Settings{}, err
		}
		decoded, err := decodeRows[Settings](rows)
		if err != nil {
			return Settings{}, err
		}
		if len(decoded) == 0 {
			return defaultSettings(userID), nil
		}
		return decoded[0], nil
	})
	if err != nil {
		// Settings reads are non-critical: keep whatever we have and
		// stay quiet unless the session died.
		if err == ErrSessionExpired {
			return cached, err
		}
		s.logger.Debug("settings load failed", zap.Error(err))
		if !loaded {
			return defaultSettings(userID), nil
		}
		return cached, nil
	}

	s.cache.replace(settings)
	return settings, nil
}

// Update stores new settings wholesale.
func (s *SettingsService) Update(ctx context.Context, settings Settings) error {
	userID := s.deps.State.UserID()
	if userID == "" {
		return ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return ErrOffline
	}
	settings.UserID = userID
	settings.UpdatedAt = time.Now()

	_, err := call(ctx, s.deps, func(ctx context.Context) (struct{}, error) {
		// upsert: a PATCH on a missing row succeeds with zero rows
		// affected, so check for the row first
		rows, selErr := s.deps.Store.Select(ctx, tableUserSettings, ownedQuery(userID))
		if selErr != nil {
			return struct{}{}, selErr
		}
		if len(rows) == 0 {
			return struct{}{}, s.deps.Store.Insert(ctx, tableUserSettings, settings, nil)
		}
		q := backend.Query{Filters: []backend.Filter{backend.Eq("user_id", userID)}}
		return struct{}{}, s.deps.Store.Update(ctx, tableUserSettings, q, settings)
	})
	if err != nil {
		s.deps.surface("settings.update", err)
		return err
	}

	s.cache.replace(settings)
	return nil
}

// Close stops the watcher and blocks further state writes.
func (s *SettingsService) Close() {
	s.watcher.stop()
	s.cache.close()
}

func (s *SettingsService) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.Get(ctx); err != nil && err != ErrSessionExpired {
		s.logger.Debug("background reload failed", zap.Error(err))
	}
}
