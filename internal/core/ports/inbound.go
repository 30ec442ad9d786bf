package ports

import (
	"context"

	"github.com/chirplabs/chirp/internal/core/domain"
)

// ChatStreamer is the inbound contract for one streamed chat turn. Fragments
// are forwarded through emit as they arrive from the model; emit returning an
// error aborts the stream (the caller went away).
type ChatStreamer interface {
	Chat(ctx context.Context, req domain.ChatRequest, emit func(fragment string) error) error
}

// KnowledgeIngestor is the inbound contract for attaching a knowledge source
// to a bot. Accept stores the raw text and schedules processing; Ingest is
// the synchronous pipeline the worker runs.
type KnowledgeIngestor interface {
	Accept(ctx context.Context, botID, sourceType, source, content string) (*domain.KnowledgeSource, error)
	Ingest(ctx context.Context, botID, source, text string) (domain.IngestResult, error)
	ProcessByID(ctx context.Context, sourceID string) error
}

// KnowledgeRemover is the tenant deletion hook: drops every vector and
// source record belonging to the bot.
type KnowledgeRemover interface {
	RemoveAll(ctx context.Context, botID string) error
}
