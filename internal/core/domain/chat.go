package domain

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one transcript entry, oldest-first in any history slice.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation groups the messages of one widget session with one bot.
type Conversation struct {
	ID        string
	BotID     string
	SessionID string
	CreatedAt time.Time
}

// ChatPrompt is the assembled generation request: grounding instructions
// plus the trimmed dialogue ending in the current question.
type ChatPrompt struct {
	System   string
	Messages []ChatMessage
}

// ChatRequest is one chat turn as it enters the orchestrator. History is
// the client-supplied transcript, oldest first; server-side history is
// merged in by the orchestrator.
type ChatRequest struct {
	BotID     string
	APIKey    string
	SessionID string
	Message   string
	History   []ChatMessage
}
