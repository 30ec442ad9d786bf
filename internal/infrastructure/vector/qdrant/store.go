package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/chirplabs/chirp/internal/core/domain"
)

const (
	defaultCollection = "chirp_knowledge"
	requestTimeout    = 15 * time.Second

	payloadBotID         = "bot_id"
	payloadText          = "text"
	payloadChunkIndex    = "chunk_index"
	payloadSource        = "source"
	payloadTokenEstimate = "token_estimate"
)

type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Store keeps all bots in one collection; every point carries a bot_id
// keyword payload and every read and write path filters on it.
type Store struct {
	client     *qdrant.Client
	collection string
}

func New(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Store{client: client, collection: cfg.Collection}, nil
}

func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return domain.WrapError(domain.ErrIndex, "check collection", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return domain.WrapError(domain.ErrIndex, "create collection", err)
	}

	// Keyword index on bot_id keeps tenant-filtered searches from scanning
	// the whole collection.
	wait := true
	fieldType := qdrant.FieldType_FieldTypeKeyword
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      payloadBotID,
		FieldType:      &fieldType,
		Wait:           &wait,
	})
	if err != nil {
		return domain.WrapError(domain.ErrIndex, "create bot_id index", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, botID string, points []domain.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}

	records := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		p.Payload.BotID = botID
		if err := p.Validate(); err != nil {
			return err
		}
		records = append(records, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payloadMap(p.Payload)),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         records,
		Wait:           &wait,
	})
	if err != nil {
		return domain.WrapError(domain.ErrIndex, "upsert points", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, botID string, queryVector []float32, topK int, scoreFloor float64) ([]domain.RetrievedContext, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	limit := uint64(topK)
	threshold := float32(scoreFloor)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		Filter:         botFilter(botID),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndex, "query points", err)
	}

	contexts := make([]domain.RetrievedContext, 0, len(results))
	for _, r := range results {
		contexts = append(contexts, contextFromPoint(r))
	}
	return contexts, nil
}

func (s *Store) DeleteAll(ctx context.Context, botID string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(botFilter(botID)),
	})
	if err != nil {
		return domain.WrapError(domain.ErrIndex, "delete bot points", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func botFilter(botID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(payloadBotID, botID),
		},
	}
}

func payloadMap(p domain.PointPayload) map[string]any {
	return map[string]any{
		payloadBotID:         p.BotID,
		payloadText:          p.Text,
		payloadChunkIndex:    int64(p.ChunkIndex),
		payloadSource:        p.Source,
		payloadTokenEstimate: int64(p.TokenEstimate),
	}
}

func contextFromPoint(r *qdrant.ScoredPoint) domain.RetrievedContext {
	ctx := domain.RetrievedContext{Score: float64(r.GetScore())}
	payload := r.GetPayload()
	if payload == nil {
		return ctx
	}
	if v, ok := payload[payloadText]; ok {
		ctx.Text = v.GetStringValue()
	}
	if v, ok := payload[payloadChunkIndex]; ok {
		ctx.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload[payloadSource]; ok {
		ctx.Source = v.GetStringValue()
	}
	return ctx
}
