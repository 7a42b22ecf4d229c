package session

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/backend"
	"github.com/havenmind/havend/internal/notify"
)

// expiredMessage is the one notice shown per expiry event.
const expiredMessage = "Your session has expired, please sign in again."

// rlsNoRowCode is the row-level-security "no rows" code the backend
// returns once a token stops matching any policy.
const rlsNoRowCode = "PGRST116"

// SignOutClient is the slice of the backend client the guard needs.
type SignOutClient interface {
	SignOut(ctx context.Context) error
	ClearSession()
}

// Guard classifies failures as session expiry and recovers once.
type Guard struct {
	state  *State
	client SignOutClient
	hub    *notify.Hub
	logger *zap.Logger

	// handled is armed after the first expiry handling and re-armed
	// when a new session is installed.
	handled atomic.Bool
}

// NewGuard wires the guard to the auth state, the backend client and
// the notice hub.
func NewGuard(state *State, client SignOutClient, hub *notify.Hub, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		state:  state,
		client: client,
		hub:    hub,
		logger: logger.Named("session"),
	}
	// A fresh sign-in re-arms expiry handling for the next event.
	state.Subscribe(func(s *backend.Session) {
		if s != nil {
			g.handled.Store(false)
		}
	})
	return g
}

// ClassifyAndHandle inspects a failed operation's error. When it
// matches an auth-expiry signature it performs the forced sign-out
// (once per expiry event) and returns true so the caller suppresses its
// own generic error handling. Otherwise it returns false and takes no
// action.
func (g *Guard) ClassifyAndHandle(ctx context.Context, err error) bool {
	if !IsAuthExpiry(err) {
		return false
	}

	// First caller in wins; concurrent callers still get true.
	if g.handled.CompareAndSwap(false, true) {
		g.logger.Info("session expired, forcing sign-out")

		// Remote revoke is best effort. Local state is authoritative
		// for "is the user signed in" and is cleared regardless.
		if signOutErr := g.client.SignOut(ctx); signOutErr != nil {
			g.logger.Warn("remote sign-out failed, local session cleared anyway",
				zap.Error(signOutErr))
		}
		g.client.ClearSession()
		g.state.Clear()

		if g.hub != nil {
			g.hub.Publish(notify.KindSessionExpired, expiredMessage)
		}
	}
	return true
}

// authExpirySignatures are matched case-insensitively against the
// error message.
var authExpirySignatures = []string{
	"jwt expired",
	"refresh_token_not_found",
	"invalid refresh token",
}

// IsAuthExpiry reports whether err carries an expired/invalid session
// signature. Pure classification; no side effects.
func IsAuthExpiry(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range authExpirySignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}

	if apiErr, ok := backend.AsAPIError(err); ok {
		if apiErr.Code == rlsNoRowCode {
			return true
		}
		if apiErr.Status == 401 && strings.Contains(msg, "jwt") {
			return true
		}
	}
	return false
}
