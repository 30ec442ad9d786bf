package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/chirplabs/chirp/internal/core/domain"
	"github.com/chirplabs/chirp/internal/core/ports"
)

const (
	defaultTopK       = 3
	defaultScoreFloor = 0.6
)

// Retriever turns a question into ranked context snippets for one bot.
// An empty result is a valid answerable state, not an error.
type Retriever struct {
	embedder   ports.Embedder
	index      ports.VectorIndex
	topK       int
	scoreFloor float64
	observer   RetrievalObserver
}

// RetrievalObserver is notified after each successful retrieval with the
// number of contexts returned and the elapsed time.
type RetrievalObserver func(contextCount int, elapsed time.Duration)

func NewRetriever(embedder ports.Embedder, index ports.VectorIndex, topK int, scoreFloor float64) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	if scoreFloor <= 0 || scoreFloor > 1 {
		scoreFloor = defaultScoreFloor
	}
	return &Retriever{
		embedder:   embedder,
		index:      index,
		topK:       topK,
		scoreFloor: scoreFloor,
	}
}

// SetObserver installs the retrieval hook. Call before serving traffic.
func (r *Retriever) SetObserver(observer RetrievalObserver) {
	r.observer = observer
}

func (r *Retriever) Retrieve(ctx context.Context, botID, question string) ([]domain.RetrievedContext, error) {
	start := time.Now()

	queryVector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	contexts, err := r.index.Search(ctx, botID, queryVector, r.topK, r.scoreFloor)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}

	if r.observer != nil {
		r.observer(len(contexts), time.Since(start))
	}
	return contexts, nil
}
