package ports

import (
	"context"
	"time"

	"github.com/chirplabs/chirp/internal/core/domain"
)

// Chunker splits raw text into retrieval-sized, sentence-bounded chunks.
type Chunker interface {
	Chunk(text, source string) []domain.TextChunk
}

// Embedder builds vectors for chunk batches and query text. Embed returns
// exactly one vector per input in input order, or fails entirely.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the per-bot-filterable nearest-neighbor store.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, botID string, points []domain.IndexedPoint) error
	Search(ctx context.Context, botID string, queryVector []float32, topK int, scoreFloor float64) ([]domain.RetrievedContext, error)
	DeleteAll(ctx context.Context, botID string) error
}

// Generator streams model output for an assembled prompt. Fragments are
// forwarded through onFragment in arrival order with no buffering; the call
// returns once the model finishes or the stream is aborted.
type Generator interface {
	GenerateStream(ctx context.Context, prompt domain.ChatPrompt, onFragment func(string) error) error
}

// AdmissionController gates a session before expensive work is dispatched.
// Allow is atomic check-then-record per session.
type AdmissionController interface {
	Allow(sessionID string) bool
}

// BotStore reads bot records and maintains the lifetime message counter.
type BotStore interface {
	GetByIDAndKey(ctx context.Context, botID, apiKey string) (*domain.Bot, error)
	IncrementMessageCount(ctx context.Context, botID string) error
}

// MessageStore persists conversation transcripts.
type MessageStore interface {
	EnsureConversation(ctx context.Context, botID, sessionID string) (*domain.Conversation, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.ChatMessage, error)
	SaveTurn(ctx context.Context, conversationID, userMessage, assistantMessage string) error
}

// SourceStore persists knowledge source records and their processing state.
type SourceStore interface {
	Create(ctx context.Context, src *domain.KnowledgeSource) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeSource, error)
	UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, errMessage string) error
	SetResult(ctx context.Context, id string, result domain.IngestResult) error
	DeleteByBot(ctx context.Context, botID string) error
}

// ObjectStorage holds raw source text between acceptance and processing.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// MessageQueue hands accepted knowledge sources to the worker.
type MessageQueue interface {
	PublishSourceAccepted(ctx context.Context, sourceID string) error
	SubscribeSourceAccepted(ctx context.Context, handler func(ctx context.Context, sourceID string, acceptedAt time.Time) error) error
}
