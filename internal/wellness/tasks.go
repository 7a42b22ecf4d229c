package wellness

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/backend"
)

// maxTitleLen bounds task titles before they reach the wire.
const maxTitleLen = 500

// TasksService manages the user's to-do list.
type TasksService struct {
	deps    *Deps
	logger  *zap.Logger
	cache   cache[[]Task]
	watcher watcher
}

// NewTasksService creates the tasks service and wires it to the change
// feed for the signed-in user.
func NewTasksService(deps Deps) *TasksService {
	deps.applyDefaults()
	s := &TasksService{
		deps:   &deps,
		logger: deps.Logger.Named("tasks"),
	}
	s.watcher.start(s.deps, tableTasks, s.reload, func() { s.cache.reset(nil) })
	return s
}

// List returns the user's tasks, fetching when reachable and serving
// the cached snapshot otherwise. A load racing another load is
// suppressed; callers get the current snapshot.
func (s *TasksService) List(ctx context.Context) ([]Task, error) {
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

	tasks, err := call(ctx, s.deps, func(ctx context.Context) ([]Task, error) {
		q := ownedQuery(userID)
		q.OrderBy, q.Descending = "created_at", true
		rows, err := s.deps.Store.Select(ctx, tableTasks, q)
		if err != nil {
			return nil, err
		}
		return decodeRows[Task](rows)
	})
	if err != nil {
		s.deps.surface("tasks.list", err)
		return cached, err
	}

	s.cache.replace(tasks)
	return tasks, nil
}

// Create inserts a new task.
func (s *TasksService) Create(ctx context.Context, title, notes string, dueAt *time.Time) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, validationError("task title is required")
	}
	if len(title) > maxTitleLen {
		return Task{}, validationError("task title exceeds %d characters", maxTitleLen)
	}

	userID := s.deps.State.UserID()
	if userID == "" {
		return Task{}, ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return Task{}, ErrOffline
	}

	record := Task{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
		Notes:  notes,
		DueAt:  dueAt,
	}

	created, err := call(ctx, s.deps, func(ctx context.Context) (Task, error) {
		var out Task
		if err := s.deps.Store.Insert(ctx, tableTasks, record, &out); err != nil {
			return Task{}, err
		}
		return out, nil
	})
	if err != nil {
		s.deps.surface("tasks.create", err)
		return Task{}, err
	}

	s.appendCached(created)
	return created, nil
}

// ToggleComplete flips a task's completed flag.
func (s *TasksService) ToggleComplete(ctx context.Context, id string) error {
	userID := s.deps.State.UserID()
	if userID == "" {
		return ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return ErrOffline
	}

	cached, _ := s.cache.snapshot()
	var target *Task
	for i := range cached {
		if cached[i].ID == id {
			target = &cached[i]
			break
		}
	}
	if target == nil {
		return validationError("unknown task %s", id)
	}
	next := !target.Completed

	_, err := call(ctx, s.deps, func(ctx context.Context) (struct{}, error) {
		q := ownedQuery(userID, backend.Eq("id", id))
		return struct{}{}, s.deps.Store.Update(ctx, tableTasks, q, map[string]any{"completed": next})
	})
	if err != nil {
		s.deps.surface("tasks.toggle", err)
		return err
	}

	s.mutateCached(func(tasks []Task) []Task {
		for i := range tasks {
			if tasks[i].ID == id {
				tasks[i].Completed = next
			}
		}
		return tasks
	})
	return nil
}

// Delete removes a task.
func (s *TasksService) Delete(ctx context.Context, id string) error {
	userID := s.deps.State.UserID()
	if userID == "" {
		return ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return ErrOffline
	}

	_, err := call(ctx, s.deps, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.deps.Store.Delete(ctx, tableTasks, ownedQuery(userID, backend.Eq("id", id)))
	})
	if err != nil {
		s.deps.surface("tasks.delete", err)
		return err
	}

	s.mutateCached(func(tasks []Task) []Task {
		out := tasks[:0]
		for _, t := range tasks {
			if t.ID != id {
				out = append(out, t)
			}
		}
		return out
	})
	return nil
}

// Close stops the watcher and blocks further state writes.
func (s *TasksService) Close() {
	s.watcher.stop()
	s.cache.close()
}

// reload refreshes the snapshot outside a caller's request, used by the
// change feed and recovery triggers. Failures here stay silent: the
// next user action will surface anything persistent.
func (s *TasksService) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.List(ctx); err != nil && err != ErrSessionExpired {
		s.logger.Debug("background reload failed", zap.Error(err))
	}
}

func (s *TasksService) appendCached(t Task) {
	s.mutateCached(func(tasks []Task) []Task {
		return append([]Task{t}, tasks...)
	})
}

// mutateCached replaces the snapshot with a mutated copy. The copy
// keeps replace() atomic: readers never observe a half-applied change.
func (s *TasksService) mutateCached(fn func([]Task) []Task) {
	cached, loaded := s.cache.snapshot()
	if !loaded && len(cached) == 0 {
		cached = nil
	}
	next := make([]Task, len(cached))
	copy(next, cached)
	s.cache.replace(fn(next))
}
