package wellness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestChatCreateSessionModes(t *testing.T) {
	store := newFakeStore()
	deps, _, _ := testDeps(store)
	svc := NewChatService(deps, nil)
	defer svc.Close()

	created, err := svc.CreateSession(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "New conversation", created.Title)
	assert.Equal(t, "text", created.Mode)

	created, err = svc.CreateSession(context.Background(), "evening check-in", "voice")
	require.NoError(t, err)
	assert.Equal(t, "voice", created.Mode)

	_, err = svc.CreateSession(context.Background(), "x", "telepathy")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChatReplyRoundTrip(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{reply: "That sounds like a good plan."}
	deps, _, _ := testDeps(store)
	svc := NewChatService(deps, gen)
	defer svc.Close()

	session, err := svc.CreateSession(context.Background(), "plans", "text")
	require.NoError(t, err)

	reply, err := svc.Reply(context.Background(), session.ID, "I want to start journaling")
	require.NoError(t, err)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "That sounds like a good plan.", reply.Content)
	assert.Equal(t, 1, gen.calls)

	msgs, err := svc.Messages(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
}

func TestChatReplyKeepsUserMessageOnGeneratorFailure(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	deps, _, _ := testDeps(store)
	svc := NewChatService(deps, gen)
	defer svc.Close()

	session, err := svc.CreateSession(context.Background(), "plans", "text")
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), session.ID, "hello?")
	require.Error(t, err)

	monitorOff(t, deps)
	msgs, err := svc.Messages(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "the user's message must survive a failed generation")
	assert.Equal(t, "user", msgs[0].Role)
}

func TestChatReplyValidation(t *testing.T) {
	deps, _, _ := testDeps(newFakeStore())
	svc := NewChatService(deps, &fakeGenerator{})
	defer svc.Close()

	_, err := svc.Reply(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChatOfflineRejectsReply(t *testing.T) {
	store := newFakeStore()
	deps, monitor, _ := testDeps(store)
	svc := NewChatService(deps, &fakeGenerator{reply: "hi"})
	defer svc.Close()

	monitor.SetOffline()
	_, err := svc.Reply(context.Background(), "s1", "hello")
	assert.ErrorIs(t, err, ErrOffline)
	assert.Zero(t, store.inserts)
}

func TestChatMessagesSingleInFlightFetch(t *testing.T) {
	store := newFakeStore()
	store.seed(tableChatMessages,
		ChatMessage{ID: "m1", SessionID: "s1", UserID: "user-1", Role: "user", Content: "hi"},
	)
	gate := make(chan struct{})
	store.selectGate = gate
	deps, _, _ := testDeps(store)
	svc := NewChatService(deps, nil)
	defer svc.Close()

	var returned atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Messages(context.Background(), "s1")
			assert.NoError(t, err)
			returned.Add(1)
		}()
	}

	assert.Eventually(t, func() bool {
		return returned.Load() == 4
	}, time.Second, 5*time.Millisecond)

	close(gate)
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.selects, "concurrent history fetches must share one request")
}

func TestChatSignOutClearsHistory(t *testing.T) {
	store := newFakeStore()
	deps, _, _ := testDeps(store)
	svc := NewChatService(deps, &fakeGenerator{reply: "ok"})
	defer svc.Close()

	session, err := svc.CreateSession(context.Background(), "plans", "text")
	require.NoError(t, err)
	_, err = svc.Reply(context.Background(), session.ID, "hello")
	require.NoError(t, err)

	deps.State.Clear()

	svc.mu.RLock()
	n := len(svc.messages)
	svc.mu.RUnlock()
	assert.Zero(t, n)

	cached, loaded := svc.cache.snapshot()
	assert.Empty(t, cached)
	assert.False(t, loaded)
}
