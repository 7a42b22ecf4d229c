// Package notify fans user-facing notices out to the UI shell.
//
// Notices are the single surface for "connection restored", "session
// expired" and generic operation failures. The hub keeps a short ring
// of recent notices for pollers and pushes to live subscribers.
package notify

import (
	"sync"
	"time"
)

// Kind labels a notice for the UI.
type Kind string

const (
	// KindInfo is an informational notice ("connection restored").
	KindInfo Kind = "info"
	// KindError is a user-visible failure ("something went wrong").
	KindError Kind = "error"
	// KindSessionExpired asks the user to sign in again. Shown at most
	// once per expiry event.
	KindSessionExpired Kind = "session_expired"
	// KindOffline marks failures caused by missing connectivity,
	// reported distinctly from generic errors.
	KindOffline Kind = "offline"
)

// Notice is one user-facing message.
type Notice struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// maxRecent bounds the ring kept for pollers.
const maxRecent = 50

// Hub distributes notices. Safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	recent []Notice
	subs   map[int]chan Notice
	nextID int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[int]chan Notice),
	}
}

// Publish records a notice and pushes it to subscribers. Slow
// subscribers are skipped rather than blocking the publisher.
func (h *Hub) Publish(kind Kind, message string) {
	n := Notice{Kind: kind, Message: message, At: time.Now()}

	h.mu.Lock()
	h.recent = append(h.recent, n)
	if len(h.recent) > maxRecent {
		h.recent = h.recent[len(h.recent)-maxRecent:]
	}
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
	h.mu.Unlock()
}

// Recent returns a copy of the retained notices, oldest first.
func (h *Hub) Recent() []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Notice, len(h.recent))
	copy(out, h.recent)
	return out
}

// Subscribe registers a live listener. The returned cancel func must be
// called to release the channel.
func (h *Hub) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, 16)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}
