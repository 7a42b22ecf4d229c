package backend

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Realtime subscribes to the backend's per-table change feed. Events
// carry no diffs; they only signal "something changed for this user on
// this table" and services re-fetch in response.
type Realtime struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// ConnectRealtime connects to the change-feed broker. The connection
// retries on initial failure and reconnects on drops, so a temporarily
// unreachable broker degrades to on-demand loads rather than an error.
func ConnectRealtime(url string, logger *zap.Logger) (*Realtime, error) {
	if url == "" {
		return nil, fmt.Errorf("realtime url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to realtime feed at %s: %w", url, err)
	}

	return &Realtime{
		nc:     nc,
		logger: logger.Named("realtime"),
	}, nil
}

// Subscribe registers fn for change events on one table scoped to one
// user. Returns an unsubscribe func.
func (r *Realtime) Subscribe(table, userID string, fn func()) (func(), error) {
	subject := fmt.Sprintf("realtime.%s.%s", table, userID)
	sub, err := r.nc.Subscribe(subject, func(*nats.Msg) {
		fn()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	r.logger.Debug("subscribed to change feed", zap.String("subject", subject))

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			r.logger.Debug("unsubscribe failed", zap.String("subject", subject), zap.Error(err))
		}
	}, nil
}

// Close drains the connection.
func (r *Realtime) Close() {
	if r.nc != nil && !r.nc.IsClosed() {
		r.nc.Close()
	}
}
