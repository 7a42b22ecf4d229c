package httpapi

import (
	"time"

	"github.com/havenmind/havend/internal/connectivity"
	"github.com/havenmind/havend/internal/streak"
)

// StatusResponse is the body of GET /api/v1/status, the single poll
// the UI shell needs to render its chrome.
type StatusResponse struct {
	Connectivity connectivity.State `json:"connectivity"`
	Streak       streak.Result      `json:"streak"`
	UnreadCount  int                `json:"unread_count"`
	SignedIn     bool               `json:"signed_in"`
	UserID       string             `json:"user_id,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// CredentialsRequest carries sign-in and sign-up input.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse reports the session after auth operations. Tokens
// stay inside the daemon.
type SessionResponse struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateTaskRequest is the body of POST /api/v1/tasks.
type CreateTaskRequest struct {
	Title string     `json:"title"`
	Notes string     `json:"notes"`
	DueAt *time.Time `json:"due_at"`
}

// CreateMoodRequest is the body of POST /api/v1/mood.
type CreateMoodRequest struct {
	Mood  int     `json:"mood"`
	Emoji string  `json:"emoji"`
	Notes *string `json:"notes"`
}

// UpdateNotesRequest is the body of PATCH /api/v1/mood/:id/notes.
type UpdateNotesRequest struct {
	Notes *string `json:"notes"`
}

// CreateChatSessionRequest is the body of POST /api/v1/chat/sessions.
type CreateChatSessionRequest struct {
	Title string `json:"title"`
	Mode  string `json:"mode"`
}

// ReplyRequest is the body of POST /api/v1/chat/sessions/:id/reply.
type ReplyRequest struct {
	Content string `json:"content"`
}

// SpeechRequest is the body of POST /api/v1/assist/speech.
type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// TranslateRequest is the body of POST /api/v1/assist/translate.
type TranslateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// TranslateResponse is the body answered by the translate route.
type TranslateResponse struct {
	Text string `json:"text"`
}
