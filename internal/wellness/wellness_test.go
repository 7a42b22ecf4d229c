package wellness

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/backend"
	"github.com/havenmind/havend/internal/connectivity"
	"github.com/havenmind/havend/internal/notify"
	"github.com/havenmind/havend/internal/retry"
	"github.com/havenmind/havend/internal/session"
)

// fakeStore is an in-memory Store with scriptable failures. Like the
// real backend it stamps created_at on insert; now is the clock it
// stamps with. A non-nil selectGate blocks every Select until the
// channel closes, for tests that need an in-flight load.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string][]json.RawMessage
	now     func() time.Time
	selects int
	inserts int
	updates int
	deletes int

	selectGate chan struct{}
	selectErr  error
	insertErr  error
	updateErr  error
	deleteErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows: make(map[string][]json.RawMessage),
		now:  time.Now,
	}
}

func (f *fakeStore) seed(table string, records ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			panic(err)
		}
		f.rows[table] = append(f.rows[table], raw)
	}
}

func (f *fakeStore) Select(ctx context.Context, table string, q backend.Query) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.selects++
	err := f.selectErr
	rows := append([]json.RawMessage(nil), f.rows[table]...)
	gate := f.selectGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (f *fakeStore) Insert(ctx context.Context, table string, record, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return f.insertErr
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	if ts, ok := fields["created_at"].(string); !ok || ts == "" || ts == "0001-01-01T00:00:00Z" {
		fields["created_at"] = f.now().Format(time.RFC3339Nano)
	}
	if raw, err = json.Marshal(fields); err != nil {
		return err
	}
	f.rows[table] = append(f.rows[table], raw)
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (f *fakeStore) Update(ctx context.Context, table string, q backend.Query, patch any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return f.updateErr
}

func (f *fakeStore) Delete(ctx context.Context, table string, q backend.Query) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return f.deleteErr
}

// fakeFeed records subscriptions and lets tests fire change events.
type fakeFeed struct {
	mu   sync.Mutex
	subs map[string]func()
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: make(map[string]func())}
}

func (f *fakeFeed) Subscribe(table, userID string, fn func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[table] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, table)
		f.mu.Unlock()
	}, nil
}

func (f *fakeFeed) fire(table string) {
	f.mu.Lock()
	fn := f.subs[table]
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type fakeSignOut struct {
	mu      sync.Mutex
	cleared bool
}

func (f *fakeSignOut) SignOut(ctx context.Context) error { return nil }

func (f *fakeSignOut) ClearSession() {
	f.mu.Lock()
	f.cleared = true
	f.mu.Unlock()
}

// testDeps builds a signed-in dependency set with a reachable monitor.
func testDeps(store Store) (Deps, *connectivity.Monitor, *notify.Hub) {
	hub := notify.NewHub()
	monitor := connectivity.NewMonitor(connectivity.DefaultConfig(), nil, hub, zap.NewNop())
	state := session.NewState()
	state.Set(&backend.Session{
		AccessToken: "token",
		UserID:      "user-1",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	guard := session.NewGuard(state, &fakeSignOut{}, hub, zap.NewNop())
	return Deps{
		Store:          store,
		Monitor:        monitor,
		Guard:          guard,
		State:          state,
		Hub:            hub,
		Policy:         retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond},
		Logger:         zap.NewNop(),
		ReloadDebounce: 5 * time.Millisecond,
	}, monitor, hub
}

// noticeKinds projects the hub's retained notices to their kinds.
func noticeKinds(hub *notify.Hub) []notify.Kind {
	recent := hub.Recent()
	kinds := make([]notify.Kind, len(recent))
	for i, n := range recent {
		kinds[i] = n.Kind
	}
	return kinds
}
