package wellness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/backend"
	"github.com/havenmind/havend/internal/notify"
	"github.com/havenmind/havend/internal/streak"
)

// MoodService manages mood entries and the streak metrics derived from
// them. Streak computation is independent of network state: it always
// runs over the locally cached entry set.
type MoodService struct {
	deps    *Deps
	logger  *zap.Logger
	cache   cache[[]MoodEntry]
	watcher watcher

	// now is the clock for the streak's today-or-yesterday check.
	// Swapped in tests.
	now func() time.Time
}

// NewMoodService creates the mood service.
func NewMoodService(deps Deps) *MoodService {
	deps.applyDefaults()
	s := &MoodService{
		deps:   &deps,
		logger: deps.Logger.Named("mood"),
		now:    time.Now,
	}
	s.watcher.start(s.deps, tableMoodEntries, s.reload, func() { s.cache.reset(nil) })
	return s
}

// List returns the user's mood entries, newest first.
func (s *MoodService) List(ctx context.Context) ([]MoodEntry, error) {
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

	entries, err := call(ctx, s.deps, func(ctx context.Context) ([]MoodEntry, error) {
		q := ownedQuery(userID)
		q.OrderBy, q.Descending = "created_at", true
		rows, err := s.deps.Store.Select(ctx, tableMoodEntries, q)
		if err != nil {
			return nil, err
		}
		return decodeRows[MoodEntry](rows)
	})
	if err != nil {
		s.deps.surface("mood.list", err)
		return cached, err
	}

	s.cache.replace(entries)
	return entries, nil
}

// Create logs a mood entry. Mood must be within 1..10; invalid input is
// rejected locally and never consumes retry budget.
func (s *MoodService) Create(ctx context.Context, mood int, emoji string, notes *string) (MoodEntry, error) {
	if mood < 1 || mood > 10 {
		return MoodEntry{}, validationError("mood must be within 1..10, got %d", mood)
	}
	if emoji == "" {
		return MoodEntry{}, validationError("emoji is required")
	}

	userID := s.deps.State.UserID()
	if userID == "" {
		return MoodEntry{}, ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return MoodEntry{}, ErrOffline
	}

	record := MoodEntry{
		ID:     uuid.NewString(),
		UserID: userID,
		Mood:   mood,
		Emoji:  emoji,
		Notes:  notes,
	}

	created, err := call(ctx, s.deps, func(ctx context.Context) (MoodEntry, error) {
		var out MoodEntry
		if err := s.deps.Store.Insert(ctx, tableMoodEntries, record, &out); err != nil {
			return MoodEntry{}, err
		}
		return out, nil
	})
	if err != nil {
		s.deps.surface("mood.create", err)
		return MoodEntry{}, err
	}

	before := s.Streak().Current
	s.mutateCached(func(entries []MoodEntry) []MoodEntry {
		return append([]MoodEntry{created}, entries...)
	})
	after := s.Streak()

	if after.Current > before && streak.ReachedMilestone(after.Current) && s.deps.Hub != nil {
		s.deps.Hub.Publish(notify.KindInfo,
			fmt.Sprintf("%d-day streak! Keep it going.", after.Current))
	}

	return created, nil
}

// UpdateNotes changes an entry's notes, the only mutable field.
func (s *MoodService) UpdateNotes(ctx context.Context, id string, notes *string) error {
	userID := s.deps.State.UserID()
	if userID == "" {
		return ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return ErrOffline
	}

	_, err := call(ctx, s.deps, func(ctx context.Context) (struct{}, error) {
		q := ownedQuery(userID, backend.Eq("id", id))
		return struct{}{}, s.deps.Store.Update(ctx, tableMoodEntries, q, map[string]any{"notes": notes})
	})
	if err != nil {
		s.deps.surface("mood.update_notes", err)
		return err
	}

	s.mutateCached(func(entries []MoodEntry) []MoodEntry {
		for i := range entries {
			if entries[i].ID == id {
				entries[i].Notes = notes
			}
		}
		return entries
	})
	return nil
}

// Delete removes an entry.
func (s *MoodService) Delete(ctx context.Context, id string) error {
	userID := s.deps.State.UserID()
	if userID == "" {
		return ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return ErrOffline
	}

	_, err := call(ctx, s.deps, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.deps.Store.Delete(ctx, tableMoodEntries, ownedQuery(userID, backend.Eq("id", id)))
	})
	if err != nil {
		s.deps.surface("mood.delete", err)
		return err
	}

	s.mutateCached(func(entries []MoodEntry) []MoodEntry {
		out := entries[:0]
		for _, e := range entries {
			if e.ID != id {
				out = append(out, e)
			}
		}
		return out
	})
	return nil
}

// Streak derives streak metrics from the cached entries. Pure over the
// snapshot; no network involved.
func (s *MoodService) Streak() streak.Result {
	entries, _ := s.cache.snapshot()
	times := make([]time.Time, len(entries))
	for i, e := range entries {
		times[i] = e.CreatedAt
	}
	return streak.Calculate(times, s.now())
}

// Close stops the watcher and blocks further state writes.
func (s *MoodService) Close() {
	s.watcher.stop()
	s.cache.close()
}

func (s *MoodService) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.List(ctx); err != nil && err != ErrSessionExpired {
		s.logger.Debug("background reload failed", zap.Error(err))
	}
}

func (s *MoodService) mutateCached(fn func([]MoodEntry) []MoodEntry) {
	cached, _ := s.cache.snapshot()
	next := make([]MoodEntry, len(cached))
	copy(next, cached)
	s.cache.replace(fn(next))
}
