// Package inmemory is the local and test implementation of the vector
// index port. It holds every point in process memory and ranks by exact
// cosine similarity, so it behaves like the qdrant store for small corpora.
package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/chirplabs/chirp/internal/core/domain"
)

type Store struct {
	mu        sync.RWMutex
	byBot     map[string]map[string]domain.IndexedPoint
	dimension int
}

func New() *Store {
	return &Store{byBot: make(map[string]map[string]domain.IndexedPoint)}
}

func (s *Store) EnsureCollection(_ context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	return nil
}

// Upsert inserts or replaces points by id. Vectors must match the
// collection dimension once EnsureCollection has fixed it.
func (s *Store) Upsert(_ context.Context, botID string, points []domain.IndexedPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		p.Payload.BotID = botID
		if err := p.Validate(); err != nil {
			return err
		}
		if s.dimension > 0 && len(p.Vector) != s.dimension {
			return domain.WrapError(domain.ErrIndex, "upsert points",
				fmt.Errorf("vector dimension %d does not match collection dimension %d", len(p.Vector), s.dimension))
		}
	}

	bucket := s.byBot[botID]
	if bucket == nil {
		bucket = make(map[string]domain.IndexedPoint)
		s.byBot[botID] = bucket
	}
	for _, p := range points {
		p.Payload.BotID = botID
		bucket[p.ID] = p
	}
	return nil
}

func (s *Store) Search(_ context.Context, botID string, queryVector []float32, topK int, scoreFloor float64) ([]domain.RetrievedContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		point domain.IndexedPoint
		score float64
	}

	var hits []scored
	for _, p := range s.byBot[botID] {
		score := cosineSimilarity(queryVector, p.Vector)
		if score < scoreFloor {
			continue
		}
		hits = append(hits, scored{point: p, score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].point.Payload.ChunkIndex < hits[j].point.Payload.ChunkIndex
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	contexts := make([]domain.RetrievedContext, len(hits))
	for i, h := range hits {
		contexts[i] = domain.RetrievedContext{
			Text:       h.point.Payload.Text,
			Score:      h.score,
			ChunkIndex: h.point.Payload.ChunkIndex,
			Source:     h.point.Payload.Source,
		}
	}
	return contexts, nil
}

func (s *Store) DeleteAll(_ context.Context, botID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byBot, botID)
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
