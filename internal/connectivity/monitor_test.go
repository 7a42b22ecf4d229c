package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/havend/internal/notify"
)

// fakeProber scripts probe results and can block to simulate slow checks.
type fakeProber struct {
	mu      sync.Mutex
	results []bool
	calls   atomic.Int32
	block   chan struct{}
}

func (p *fakeProber) Probe(ctx context.Context) bool {
	p.calls.Add(1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return false
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return true
	}
	r := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return r
}

func newMonitor(p Prober, hub *notify.Hub) *Monitor {
	return NewMonitor(Config{
		ProbeTimeout:  time.Second,
		ProbeInterval: 10 * time.Millisecond,
		Freshness:     time.Minute,
	}, p, hub, nil)
}

func TestInitialStateIsOptimistic(t *testing.T) {
	m := newMonitor(&fakeProber{}, nil)

	s := m.State()
	assert.True(t, s.Online)
	assert.True(t, s.BackendReachable)
	assert.Nil(t, s.LastCheckedAt)
	assert.False(t, s.Checking)
}

func TestSetOffline_ForcesUnreachableWithoutProbe(t *testing.T) {
	p := &fakeProber{}
	m := newMonitor(p, nil)

	m.SetOffline()

	s := m.State()
	assert.False(t, s.Online)
	assert.False(t, s.BackendReachable)
	assert.Equal(t, int32(0), p.calls.Load(), "no probe issued")
	assert.False(t, m.Reachable())
}

func TestSetOnline_OptimisticThenCorrectedByFailedProbe(t *testing.T) {
	p := &fakeProber{results: []bool{false}}
	m := newMonitor(p, nil)

	m.SetOffline()
	m.SetOnline()
	assert.True(t, m.State().BackendReachable, "optimistic until probed")

	ok := m.Probe(context.Background())
	assert.False(t, ok)
	assert.False(t, m.State().BackendReachable)
}

func TestProbe_UpdatesLastCheckedAt(t *testing.T) {
	m := newMonitor(&fakeProber{results: []bool{true}}, nil)

	require.True(t, m.Probe(context.Background()))

	s := m.State()
	require.NotNil(t, s.LastCheckedAt)
	assert.WithinDuration(t, time.Now(), *s.LastCheckedAt, time.Second)
	assert.False(t, s.Checking)
}

func TestProbe_SingleFlight(t *testing.T) {
	p := &fakeProber{block: make(chan struct{})}
	m := newMonitor(p, nil)

	done := make(chan bool)
	go func() {
		done <- m.Probe(context.Background())
	}()

	// Wait for the first probe to be in flight.
	assert.Eventually(t, func() bool { return m.State().Checking },
		time.Second, time.Millisecond)

	// Reentrant call returns last known state without a second request.
	assert.True(t, m.Probe(context.Background()))
	assert.Equal(t, int32(1), p.calls.Load())

	close(p.block)
	assert.True(t, <-done)
}

func TestRestoredSignal_FiresOncePerRecovery(t *testing.T) {
	p := &fakeProber{results: []bool{false, true, true}}
	hub := notify.NewHub()
	m := newMonitor(p, hub)

	var reloads atomic.Int32
	m.OnRestored(func() { reloads.Add(1) })

	assert.False(t, m.Probe(context.Background()))
	assert.True(t, m.Probe(context.Background()), "recovery")
	assert.True(t, m.Probe(context.Background()), "still healthy")

	assert.Equal(t, int32(1), reloads.Load(), "restored callback once, not per healthy probe")
	require.Len(t, hub.Recent(), 1)
	assert.Equal(t, notify.KindInfo, hub.Recent()[0].Kind)
}

func TestRestoredSignal_AfterOfflineOnlineCycle(t *testing.T) {
	p := &fakeProber{results: []bool{true}}
	hub := notify.NewHub()
	m := newMonitor(p, hub)

	m.SetOffline()
	m.SetOnline()

	// Optimistic flag alone does not announce recovery; the probe
	// confirming it does.
	assert.Empty(t, hub.Recent())
	assert.True(t, m.Probe(context.Background()))
	assert.Len(t, hub.Recent(), 1)
}

func TestShouldProbe(t *testing.T) {
	m := newMonitor(&fakeProber{}, nil)
	now := time.Now()

	assert.True(t, m.shouldProbe(now), "never checked yet")

	recent := now.Add(-time.Second)
	m.mu.Lock()
	m.state.LastCheckedAt = &recent
	m.mu.Unlock()
	assert.False(t, m.shouldProbe(now), "healthy and fresh")

	stale := now.Add(-2 * time.Minute)
	m.mu.Lock()
	m.state.LastCheckedAt = &stale
	m.mu.Unlock()
	assert.True(t, m.shouldProbe(now), "healthy but stale")

	m.mu.Lock()
	m.state.BackendReachable = false
	m.state.LastCheckedAt = &recent
	m.mu.Unlock()
	assert.True(t, m.shouldProbe(now), "unreachable always re-probes")

	m.SetOffline()
	assert.False(t, m.shouldProbe(now), "offline skips probing entirely")
}

func TestRun_ProbesUntilCanceled(t *testing.T) {
	p := &fakeProber{results: []bool{false}}
	m := newMonitor(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	// Unreachable state keeps the loop probing every interval.
	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 },
		time.Second, 5*time.Millisecond)
	cancel()
}
