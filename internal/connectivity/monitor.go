package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/notify"
)

// restoredMessage is the notice shown once per recovery.
const restoredMessage = "Connection restored."

// State is a snapshot of current connectivity.
type State struct {
	// Online mirrors the platform's network-interface signal.
	Online bool `json:"is_online"`

	// BackendReachable reports whether the backend answered the last
	// probe. Optimistically true until a probe or an offline
	// transition says otherwise.
	BackendReachable bool `json:"is_backend_reachable"`

	// LastCheckedAt is when the last probe completed, nil before the
	// first one.
	LastCheckedAt *time.Time `json:"last_checked_at"`

	// Checking is true only while a probe is in flight.
	Checking bool `json:"is_checking"`
}

// Prober performs one reachability check. Any response from the
// endpoint reports true; only transport failure or timeout is false.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Config holds monitor tuning.
type Config struct {
	// ProbeTimeout bounds one probe (hard cap 5s, enforced by config
	// validation upstream).
	ProbeTimeout time.Duration

	// ProbeInterval is how often the background loop wakes.
	ProbeInterval time.Duration

	// Freshness is how stale a healthy check may get before the loop
	// re-probes anyway. Probes are skipped while healthy and fresh to
	// avoid probe spam.
	Freshness time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ProbeTimeout:  5 * time.Second,
		ProbeInterval: 30 * time.Second,
		Freshness:     90 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = def.ProbeInterval
	}
	if c.Freshness <= 0 {
		c.Freshness = def.Freshness
	}
}

// Monitor tracks online/offline transitions and backend reachability.
type Monitor struct {
	cfg    Config
	prober Prober
	hub    *notify.Hub
	logger *zap.Logger

	mu    sync.Mutex
	state State
	// wasUnreachable arms the one-shot "connection restored" signal.
	wasUnreachable bool
	onRestored     []func()
}

// NewMonitor creates a monitor in the optimistic initial state.
func NewMonitor(cfg Config, prober Prober, hub *notify.Hub, logger *zap.Logger) *Monitor {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cfg:    cfg,
		prober: prober,
		hub:    hub,
		logger: logger.Named("connectivity"),
		state: State{
			Online:           true,
			BackendReachable: true,
		},
	}
}

// State returns a snapshot.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reachable is the gate resource services consult before remote work.
func (m *Monitor) Reachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Online && m.state.BackendReachable
}

// OnRestored registers fn to run after each confirmed recovery.
func (m *Monitor) OnRestored(fn func()) {
	m.mu.Lock()
	m.onRestored = append(m.onRestored, fn)
	m.mu.Unlock()
}

// SetOffline records the platform's offline signal. No probe needed:
// without a network the backend is unreachable by definition.
func (m *Monitor) SetOffline() {
	m.mu.Lock()
	m.state.Online = false
	m.state.BackendReachable = false
	m.wasUnreachable = true
	m.mu.Unlock()

	m.logger.Info("network offline")
	metrics().offlineTotal.Inc()
}

// SetOnline records the platform's online signal. Reachability is set
// optimistically; the next probe corrects it if the backend is still
// down, and the restored signal waits for that probe's confirmation.
func (m *Monitor) SetOnline() {
	m.mu.Lock()
	m.state.Online = true
	m.state.BackendReachable = true
	m.mu.Unlock()

	m.logger.Info("network online")
}

// Probe performs one reachability check and updates state.
//
// At most one probe runs at a time: a call arriving while one is in
// flight returns the last known state instead of stacking requests.
func (m *Monitor) Probe(ctx context.Context) bool {
	m.mu.Lock()
	if m.state.Checking {
		reachable := m.state.BackendReachable
		m.mu.Unlock()
		return reachable
	}
	m.state.Checking = true
	m.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	reachable := m.prober.Probe(probeCtx)
	cancel()

	now := time.Now()

	m.mu.Lock()
	m.state.Checking = false
	m.state.LastCheckedAt = &now
	m.state.BackendReachable = reachable

	restored := reachable && m.wasUnreachable
	if reachable {
		m.wasUnreachable = false
	} else {
		m.wasUnreachable = true
	}
	var callbacks []func()
	if restored {
		callbacks = make([]func(), len(m.onRestored))
		copy(callbacks, m.onRestored)
	}
	m.mu.Unlock()

	if reachable {
		metrics().probesTotal.WithLabelValues("reachable").Inc()
	} else {
		metrics().probesTotal.WithLabelValues("unreachable").Inc()
		m.logger.Warn("backend unreachable")
	}

	if restored {
		m.logger.Info("backend reachable again")
		metrics().restoredTotal.Inc()
		if m.hub != nil {
			m.hub.Publish(notify.KindInfo, restoredMessage)
		}
		for _, fn := range callbacks {
			fn()
		}
	}

	return reachable
}

// Run probes periodically until ctx is canceled. A probe is only
// issued when currently unreachable or when the last check has gone
// stale; healthy and fresh state skips the wire entirely.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.shouldProbe(time.Now()) {
				m.Probe(ctx)
			}
		}
	}
}

func (m *Monitor) shouldProbe(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Online {
		// no network, nothing to learn from a probe
		return false
	}
	if !m.state.BackendReachable {
		return true
	}
	if m.state.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*m.state.LastCheckedAt) > m.cfg.Freshness
}
