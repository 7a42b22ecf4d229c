package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/havend/internal/backend"
	"github.com/havenmind/havend/internal/notify"
)

type fakeClient struct {
	signOuts   atomic.Int32
	clears     atomic.Int32
	signOutErr error
}

func (f *fakeClient) SignOut(context.Context) error {
	f.signOuts.Add(1)
	return f.signOutErr
}

func (f *fakeClient) ClearSession() {
	f.clears.Add(1)
}

func expiredErr() error {
	return &backend.APIError{Status: 401, Message: "JWT expired"}
}

func TestIsAuthExpiry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"jwt expired message", errors.New("JWT expired"), true},
		{"case insensitive", errors.New("jwt EXPIRED near token"), true},
		{"rls no-row code", &backend.APIError{Status: 406, Code: "PGRST116", Message: "no rows"}, true},
		{"401 with jwt message", &backend.APIError{Status: 401, Message: "invalid JWT: bad signature"}, true},
		{"401 without jwt message", &backend.APIError{Status: 401, Message: "bad credentials"}, false},
		{"refresh token missing", errors.New("refresh_token_not_found"), true},
		{"invalid refresh token", &backend.APIError{Status: 400, Message: "Invalid Refresh Token: already used"}, true},
		{"ordinary failure", errors.New("connection reset by peer"), false},
		{"500", &backend.APIError{Status: 500, Message: "internal"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthExpiry(tt.err))
		})
	}
}

func TestClassifyAndHandle_NonMatchTakesNoAction(t *testing.T) {
	client := &fakeClient{}
	state := NewState()
	state.Set(&backend.Session{UserID: "u1"})
	g := NewGuard(state, client, notify.NewHub(), nil)

	handled := g.ClassifyAndHandle(context.Background(), errors.New("boom"))

	assert.False(t, handled)
	assert.Equal(t, int32(0), client.signOuts.Load())
	assert.True(t, state.SignedIn())
}

func TestClassifyAndHandle_ExpirySignsOutOnce(t *testing.T) {
	client := &fakeClient{}
	state := NewState()
	state.Set(&backend.Session{UserID: "u1"})
	hub := notify.NewHub()
	g := NewGuard(state, client, hub, nil)

	assert.True(t, g.ClassifyAndHandle(context.Background(), expiredErr()))
	assert.True(t, g.ClassifyAndHandle(context.Background(), expiredErr()), "still classified true")

	assert.Equal(t, int32(1), client.signOuts.Load(), "sign-out ran once")
	assert.False(t, state.SignedIn())

	notices := hub.Recent()
	require.Len(t, notices, 1, "one notification per expiry event")
	assert.Equal(t, notify.KindSessionExpired, notices[0].Kind)
}

func TestClassifyAndHandle_ConcurrentFailuresSignOutOnce(t *testing.T) {
	client := &fakeClient{}
	state := NewState()
	state.Set(&backend.Session{UserID: "u1"})
	hub := notify.NewHub()
	g := NewGuard(state, client, hub, nil)

	var wg sync.WaitGroup
	results := make([]bool, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.ClassifyAndHandle(context.Background(), expiredErr())
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		assert.True(t, r, "caller %d sees expiry classification", i)
	}
	assert.Equal(t, int32(1), client.signOuts.Load())
	assert.Len(t, hub.Recent(), 1)
}

func TestClassifyAndHandle_LocalClearSurvivesRemoteFailure(t *testing.T) {
	client := &fakeClient{signOutErr: errors.New("network down")}
	state := NewState()
	state.Set(&backend.Session{UserID: "u1"})
	g := NewGuard(state, client, notify.NewHub(), nil)

	assert.True(t, g.ClassifyAndHandle(context.Background(), expiredErr()))

	assert.False(t, state.SignedIn(), "local state cleared despite remote failure")
	assert.Equal(t, int32(1), client.clears.Load())
}

func TestClassifyAndHandle_RearmsAfterNewSignIn(t *testing.T) {
	client := &fakeClient{}
	state := NewState()
	state.Set(&backend.Session{UserID: "u1"})
	hub := notify.NewHub()
	g := NewGuard(state, client, hub, nil)

	assert.True(t, g.ClassifyAndHandle(context.Background(), expiredErr()))
	assert.Equal(t, int32(1), client.signOuts.Load())

	// User signs in again; the next expiry is a new event.
	state.Set(&backend.Session{UserID: "u1", AccessToken: "fresh"})

	assert.True(t, g.ClassifyAndHandle(context.Background(), expiredErr()))
	assert.Equal(t, int32(2), client.signOuts.Load())
	assert.Len(t, hub.Recent(), 2)
}
