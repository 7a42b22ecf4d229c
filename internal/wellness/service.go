package wellness

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/backend"
	"github.com/havenmind/havend/internal/connectivity"
	"github.com/havenmind/havend/internal/debounce"
	"github.com/havenmind/havend/internal/notify"
	"github.com/havenmind/havend/internal/retry"
	"github.com/havenmind/havend/internal/session"
)

// Store is the slice of the backend table API the services consume.
// *backend.Client satisfies it.
type Store interface {
	Select(ctx context.Context, table string, q backend.Query) ([]json.RawMessage, error)
	Insert(ctx context.Context, table string, record, out any) error
	Update(ctx context.Context, table string, q backend.Query, patch any) error
	Delete(ctx context.Context, table string, q backend.Query) error
}

// Feed is the realtime change subscription. *backend.Realtime
// satisfies it. Events carry no payload; they only trigger re-fetches.
type Feed interface {
	Subscribe(table, userID string, fn func()) (func(), error)
}

// Deps bundles the shared collaborators every resource service needs.
type Deps struct {
	Store   Store
	Monitor *connectivity.Monitor
	Guard   *session.Guard
	State   *session.State
	Hub     *notify.Hub
	Policy  retry.Policy
	Logger  *zap.Logger

	// Feed may be nil; services then reload only on demand.
	Feed Feed

	// ReloadDebounce coalesces realtime event bursts. Zero picks a
	// 1s default.
	ReloadDebounce time.Duration
}

func (d *Deps) applyDefaults() {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.ReloadDebounce <= 0 {
		d.ReloadDebounce = time.Second
	}
}

// reachable reports whether remote work should be attempted at all.
func (d *Deps) reachable() bool {
	return d.Monitor == nil || d.Monitor.Reachable()
}

// call runs op through the retry policy and classifies any failure:
// session expiry is handled by the guard and comes back as
// ErrSessionExpired so callers suppress generic handling.
func call[T any](ctx context.Context, d *Deps, op func(context.Context) (T, error)) (T, error) {
	value, err := retry.Do(ctx, d.Policy, d.Logger, op)
	if err != nil {
		if d.Guard != nil && d.Guard.ClassifyAndHandle(ctx, err) {
			return value, ErrSessionExpired
		}
		return value, err
	}
	return value, nil
}

// surface reports one generic failure notice for a logical action.
// Offline and session-expiry outcomes have their own surfaces and are
// never reported generically.
func (d *Deps) surface(action string, err error) {
	if err == nil || err == ErrSessionExpired {
		return
	}
	d.Logger.Warn("operation failed", zap.String("action", action), zap.Error(err))
	if d.Hub != nil {
		d.Hub.Publish(notify.KindError, "Something went wrong, please try again.")
	}
}

// cache is the locally held snapshot of one resource. Replaced
// wholesale on successful loads; never partially merged.
type cache[T any] struct {
	mu      sync.RWMutex
	value   T
	loaded  bool
	closed  bool
	loading atomic.Bool
}

// snapshot returns the cached value and whether a load ever succeeded.
func (c *cache[T]) snapshot() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.loaded
}

// replace atomically installs a new snapshot. Writes after close are
// dropped so a fetch resolving during shutdown cannot resurrect state.
func (c *cache[T]) replace(v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.value = v
	c.loaded = true
	return true
}

// reset drops the snapshot (sign-out).
func (c *cache[T]) reset(zero T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = zero
	c.loaded = false
}

func (c *cache[T]) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *cache[T]) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// beginLoad claims the single in-flight load slot. A load triggered
// while another is running is suppressed.
func (c *cache[T]) beginLoad() bool {
	return c.loading.CompareAndSwap(false, true)
}

func (c *cache[T]) endLoad() {
	c.loading.Store(false)
}

// watcher ties a resource to the realtime feed and the session
// lifecycle: subscribed while signed in, debounced reloads on events,
// cache dropped on sign-out.
type watcher struct {
	mu    sync.Mutex
	unsub func()
	deb   *debounce.Debouncer
}

// start wires the watcher. reload runs debounced on every change event
// and on connection recovery; clear runs on sign-out.
func (w *watcher) start(d *Deps, table string, reload, clear func()) {
	w.deb = debounce.New(d.ReloadDebounce, reload)

	if d.Monitor != nil {
		// Monitor callbacks cannot be unregistered. A stopped
		// debouncer drops Trigger calls, so the registration goes
		// inert after stop(); services share the daemon's lifetime.
		d.Monitor.OnRestored(w.deb.Trigger)
	}

	subscribe := func(userID string) {
		if d.Feed == nil {
			return
		}
		unsub, err := d.Feed.Subscribe(table, userID, w.deb.Trigger)
		if err != nil {
			d.Logger.Warn("change feed subscription failed",
				zap.String("table", table), zap.Error(err))
			return
		}
		w.mu.Lock()
		w.unsub = unsub
		w.mu.Unlock()
	}

	if d.State != nil {
		if s := d.State.Current(); s != nil {
			subscribe(s.UserID)
		}
		d.State.Subscribe(func(s *backend.Session) {
			w.mu.Lock()
			if w.unsub != nil {
				w.unsub()
				w.unsub = nil
			}
			w.mu.Unlock()

			if s == nil {
				clear()
				return
			}
			subscribe(s.UserID)
		})
	}
}

func (w *watcher) stop() {
	w.mu.Lock()
	if w.unsub != nil {
		w.unsub()
		w.unsub = nil
	}
	w.mu.Unlock()
	if w.deb != nil {
		w.deb.Stop()
	}
}

// decodeRows decodes raw backend rows into a typed slice.
func decodeRows[T any](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ownedQuery scopes a query to the signed-in user.
func ownedQuery(userID string, extra ...backend.Filter) backend.Query {
	q := backend.Query{Filters: []backend.Filter{backend.Eq("user_id", userID)}}
	q.Filters = append(q.Filters, extra...)
	return q
}
