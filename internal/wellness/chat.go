package wellness

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/backend"
)

// Generator produces an assistant reply for a prompt. The assist
// package provides the real implementation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatService manages AI chat sessions and messages. Message history
// is cached per session; the session list follows the usual snapshot
// pattern.
type ChatService struct {
	deps      *Deps
	logger    *zap.Logger
	generator Generator

	cache   cache[[]ChatSession]
	watcher watcher

	mu       sync.RWMutex
	messages map[string][]ChatMessage
	fetching map[string]bool
}

// NewChatService creates the chat service. generator may be nil; Reply
// then persists the user message and reports the assist failure.
func NewChatService(deps Deps, generator Generator) *ChatService {
	deps.applyDefaults()
	s := &ChatService{
		deps:      &deps,
		logger:    deps.Logger.Named("chat"),
		generator: generator,
		messages:  make(map[string][]ChatMessage),
		fetching:  make(map[string]bool),
	}
	s.watcher.start(s.deps, tableChatSessions, s.reload, s.clear)
	return s
}

// Sessions lists the user's chat sessions.
func (s *ChatService) Sessions(ctx context.Context) ([]ChatSession, error) {
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

	sessions, err := call(ctx, s.deps, func(ctx context.Context) ([]ChatSession, error) {
		q := ownedQuery(userID)
		q.OrderBy, q.Descending = "created_at", true
		rows, err := s.deps.Store.Select(ctx, tableChatSessions, q)
		if err != nil {
			return nil, err
		}
		return decodeRows[ChatSession](rows)
	})
	if err != nil {
		s.deps.surface("chat.sessions", err)
		return cached, err
	}

	s.cache.replace(sessions)
	return sessions, nil
}

// CreateSession starts a new conversation.
func (s *ChatService) CreateSession(ctx context.Context, title, mode string) (ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New conversation"
	}
	switch mode {
	case "", "text":
		mode = "text"
	case "voice", "video":
	default:
		return ChatSession{}, validationError("unknown chat mode %q", mode)
	}

	userID := s.deps.State.UserID()
	if userID == "" {
		return ChatSession{}, ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return ChatSession{}, ErrOffline
	}

	record := ChatSession{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
		Mode:   mode,
	}

	created, err := call(ctx, s.deps, func(ctx context.Context) (ChatSession, error) {
		var out ChatSession
		if err := s.deps.Store.Insert(ctx, tableChatSessions, record, &out); err != nil {
			return ChatSession{}, err
		}
		return out, nil
	})
	if err != nil {
		s.deps.surface("chat.create_session", err)
		return ChatSession{}, err
	}

	cached, _ := s.cache.snapshot()
	s.cache.replace(append([]ChatSession{created}, cached...))
	return created, nil
}

// Messages returns the history of one session, fetching when
// reachable. At most one fetch per session runs at a time; concurrent
// callers get the cached history.
func (s *ChatService) Messages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	userID := s.deps.State.UserID()
	if userID == "" {
		return nil, ErrNotSignedIn
	}

	s.mu.Lock()
	cached := s.messages[sessionID]
	if s.fetching[sessionID] {
		s.mu.Unlock()
		return cached, nil
	}
	s.fetching[sessionID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.fetching, sessionID)
		s.mu.Unlock()
	}()

	if !s.deps.reachable() {
		return cached, nil
	}

	msgs, err := call(ctx, s.deps, func(ctx context.Context) ([]ChatMessage, error) {
		q := ownedQuery(userID, backend.Eq("session_id", sessionID))
		q.OrderBy = "created_at"
		rows, err := s.deps.Store.Select(ctx, tableChatMessages, q)
		if err != nil {
			return nil, err
		}
		return decodeRows[ChatMessage](rows)
	})
	if err != nil {
		s.deps.surface("chat.messages", err)
		return cached, err
	}

	s.mu.Lock()
	s.messages[sessionID] = msgs
	s.mu.Unlock()
	return msgs, nil
}

// Reply persists the user's message, asks the generator for a response
// and persists that too. The user message surviving a failed generation
// is intentional: history must not lose what the user said.
func (s *ChatService) Reply(ctx context.Context, sessionID, content string) (ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return ChatMessage{}, validationError("message content is required")
	}

	userID := s.deps.State.UserID()
	if userID == "" {
		return ChatMessage{}, ErrNotSignedIn
	}
	if !s.deps.reachable() {
		return ChatMessage{}, ErrOffline
	}

	if _, err := s.append(ctx, sessionID, userID, "user", content); err != nil {
		s.deps.surface("chat.reply", err)
		return ChatMessage{}, err
	}

	if s.generator == nil {
		return ChatMessage{}, validationError("no generator configured")
	}

	text, err := call(ctx, s.deps, func(ctx context.Context) (string, error) {
		return s.generator.Generate(ctx, content)
	})
	if err != nil {
		s.deps.surface("chat.generate", err)
		return ChatMessage{}, err
	}

	reply, err := s.append(ctx, sessionID, userID, "assistant", text)
	if err != nil {
		s.deps.surface("chat.reply", err)
		return ChatMessage{}, err
	}
	return reply, nil
}

func (s *ChatService) append(ctx context.Context, sessionID, userID, role, content string) (ChatMessage, error) {
	record := ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Content:   content,
	}

	created, err := call(ctx, s.deps, func(ctx context.Context) (ChatMessage, error) {
		var out ChatMessage
		if err := s.deps.Store.Insert(ctx, tableChatMessages, record, &out); err != nil {
			return ChatMessage{}, err
		}
		return out, nil
	})
	if err != nil {
		return ChatMessage{}, err
	}

	s.mu.Lock()
	s.messages[sessionID] = append(s.messages[sessionID], created)
	s.mu.Unlock()
	return created, nil
}

// Close stops the watcher and blocks further state writes.
func (s *ChatService) Close() {
	s.watcher.stop()
	s.cache.close()
}

func (s *ChatService) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.Sessions(ctx); err != nil && err != ErrSessionExpired {
		s.logger.Debug("background reload failed", zap.Error(err))
	}
}

func (s *ChatService) clear() {
	s.cache.reset(nil)
	s.mu.Lock()
	s.messages = make(map[string][]ChatMessage)
	s.mu.Unlock()
}
