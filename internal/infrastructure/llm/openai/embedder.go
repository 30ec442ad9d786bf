package openai

import (
	"context"
	"fmt"

	"github.com/chirplabs/chirp/internal/core/domain"
)

const embedBatchSize = 100

// Embedder calls the embeddings endpoint in batches of up to 100 inputs.
// The result keeps input order; any batch failure aborts the whole call so
// a partially embedded document is never indexed.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := e.embedBatch(ctx, texts[start:end], vectors[start:end]); err != nil {
			return nil, domain.WrapError(domain.ErrProvider, "embed batch", wrapTemporaryIfNeeded("embed", err))
		}
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, domain.WrapError(domain.ErrProvider, "embed query", fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string, out [][]float32) error {
	request := map[string]any{
		"model":      e.client.cfg.EmbedModel,
		"input":      batch,
		"dimensions": e.client.cfg.EmbedDimensions,
	}

	var response struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}

	call := func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/v1/embeddings", request, &response, "embed")
	}
	var err error
	if e.client.executor != nil {
		err = e.client.executor.Execute(ctx, "openai_embed", call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return err
	}

	if len(response.Data) != len(batch) {
		return fmt.Errorf("embedding count mismatch: sent %d, received %d", len(batch), len(response.Data))
	}
	// The API may return items out of order; place each by its index field.
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return fmt.Errorf("embedding index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	for i, v := range out {
		if len(v) == 0 {
			return fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return nil
}
