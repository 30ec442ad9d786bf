package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chirplabs/chirp/internal/core/domain"
	"github.com/chirplabs/chirp/internal/core/ports"
)

// IngestUseCase drives knowledge attachment end to end: Accept stores the
// raw text and schedules processing, ProcessByID is the worker entry point,
// Ingest is the synchronous chunk-embed-index pipeline, RemoveAll is the
// tenant deletion hook.
type IngestUseCase struct {
	sources  ports.SourceStore
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	chunker  ports.Chunker
	embedder ports.Embedder
	index    ports.VectorIndex
}

func NewIngestUseCase(
	sources ports.SourceStore,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
) *IngestUseCase {
	return &IngestUseCase{
		sources:  sources,
		storage:  storage,
		queue:    queue,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
	}
}

func (uc *IngestUseCase) Accept(ctx context.Context, botID, sourceType, source, content string) (*domain.KnowledgeSource, error) {
	if strings.TrimSpace(botID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "accept source", errors.New("bot id is required"))
	}
	if sourceType != "url" && sourceType != "text" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "accept source", fmt.Errorf("unknown source type %q", sourceType))
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "accept source", errors.New("content is empty"))
	}

	id := uuid.NewString()
	storageKey := id + ".txt"
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, []byte(content)); err != nil {
		return nil, fmt.Errorf("save source text: %w", err)
	}

	src := &domain.KnowledgeSource{
		ID:         id,
		BotID:      botID,
		SourceType: sourceType,
		Source:     source,
		StorageKey: storageKey,
		Status:     domain.SourcePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.sources.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("create source record: %w", err)
	}

	if err := uc.queue.PublishSourceAccepted(ctx, src.ID); err != nil {
		return nil, fmt.Errorf("publish source accepted: %w", err)
	}
	return src, nil
}

func (uc *IngestUseCase) ProcessByID(ctx context.Context, sourceID string) error {
	if err := uc.sources.UpdateStatus(ctx, sourceID, domain.SourceProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.processPipeline(ctx, sourceID)
	if err != nil {
		if failErr := uc.sources.UpdateStatus(ctx, sourceID, domain.SourceFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.sources.SetResult(ctx, sourceID, result); err != nil {
		return fmt.Errorf("save ingest result: %w", err)
	}
	if err := uc.sources.UpdateStatus(ctx, sourceID, domain.SourceReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *IngestUseCase) processPipeline(ctx context.Context, sourceID string) (domain.IngestResult, error) {
	src, err := uc.sources.GetByID(ctx, sourceID)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("fetch source by id: %w", err)
	}

	text, err := uc.storage.Load(ctx, src.StorageKey)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("load source text: %w", err)
	}

	return uc.Ingest(ctx, src.BotID, src.Source, string(text))
}

// Ingest chunks text, embeds the chunks and repopulates the bot's slice of
// the vector index. Re-ingestion clears the previous points first so the
// bot always reflects exactly one knowledge source.
func (uc *IngestUseCase) Ingest(ctx context.Context, botID, source, text string) (domain.IngestResult, error) {
	chunks := uc.chunker.Chunk(text, source)
	if len(chunks) == 0 {
		return domain.IngestResult{}, domain.WrapError(domain.ErrInvalidInput, "chunk text", errors.New("no chunks produced"))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return domain.IngestResult{}, domain.WrapError(
			domain.ErrProvider,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	points := make([]domain.IndexedPoint, len(chunks))
	for i, c := range chunks {
		points[i] = domain.IndexedPoint{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: domain.PointPayload{
				BotID:         botID,
				Text:          c.Text,
				ChunkIndex:    c.Index,
				Source:        c.Source,
				TokenEstimate: c.TokenEstimate,
			},
		}
	}

	if err := uc.index.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return domain.IngestResult{}, fmt.Errorf("ensure collection: %w", err)
	}
	if err := uc.index.DeleteAll(ctx, botID); err != nil {
		return domain.IngestResult{}, fmt.Errorf("clear previous points: %w", err)
	}
	if err := uc.index.Upsert(ctx, botID, points); err != nil {
		return domain.IngestResult{}, fmt.Errorf("upsert points: %w", err)
	}

	return domain.IngestResult{
		ChunksCreated: len(chunks),
		VectorsStored: len(points),
	}, nil
}

// RemoveAll drops every vector and source record for the bot. Index
// deletion is best-effort: a backend failure is logged and the source rows
// are still cleared.
func (uc *IngestUseCase) RemoveAll(ctx context.Context, botID string) error {
	if err := uc.index.DeleteAll(ctx, botID); err != nil {
		slog.Error("delete bot vectors", "bot_id", botID, "error", err)
	}
	if err := uc.sources.DeleteByBot(ctx, botID); err != nil {
		return fmt.Errorf("delete source records: %w", err)
	}
	return nil
}
