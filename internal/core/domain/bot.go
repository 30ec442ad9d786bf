package domain

import "time"

// Bot is the unit of isolation: vectors, quotas and rate limits are all
// scoped to one bot.
type Bot struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKey       string    `json:"-"`
	MessageCount int       `json:"message_count"`
	MessageLimit int       `json:"message_limit"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// QuotaExhausted reports whether the bot has used up its lifetime message
// allowance. Checked before any generation work is dispatched.
func (b *Bot) QuotaExhausted() bool {
	return b.MessageCount >= b.MessageLimit
}

type SourceStatus string

const (
	SourcePending    SourceStatus = "pending"
	SourceProcessing SourceStatus = "processing"
	SourceReady      SourceStatus = "ready"
	SourceFailed     SourceStatus = "failed"
)

// KnowledgeSource tracks one ingested knowledge attachment for a bot.
// The raw text lives in object storage under StorageKey until the worker
// has chunked and indexed it.
type KnowledgeSource struct {
	ID            string       `json:"id"`
	BotID         string       `json:"bot_id"`
	SourceType    string       `json:"source_type"`
	Source        string       `json:"source"`
	StorageKey    string       `json:"-"`
	Status        SourceStatus `json:"status"`
	ChunksCreated int          `json:"chunks_created"`
	VectorsStored int          `json:"vectors_stored"`
	Error         string       `json:"error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
