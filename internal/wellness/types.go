package wellness

import "time"

// Task is one to-do item owned by the signed-in user.
type Task struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	Completed bool       `json:"completed"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// MoodEntry is one mood log record. Mood and CreatedAt are immutable
// after creation; only Notes may change, and deletion is explicit.
type MoodEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Mood      int       `json:"mood"` // 1..10
	Emoji     string    `json:"emoji"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSession groups messages of one AI conversation.
type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Mode      string    `json:"mode"` // "text", "voice" or "video"
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one turn in a chat session.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Settings holds per-user preferences.
type Settings struct {
	UserID               string    `json:"user_id"`
	DisplayName          string    `json:"display_name"`
	Language             string    `json:"language"`
	VoiceEnabled         bool      `json:"voice_enabled"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Notification is one in-app notification row.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Backend table names.
const (
	tableTasks         = "tasks"
	tableMoodEntries   = "mood_entries"
	tableChatSessions  = "chat_sessions"
	tableChatMessages  = "chat_messages"
	tableUserSettings  = "user_settings"
	tableNotifications = "notifications"
)
