package domain

// TextChunk is one retrieval-sized, sentence-bounded segment of ingested
// text. Produced by the chunker, embedded once, then discarded after the
// vectors are stored.
type TextChunk struct {
	Text          string `json:"text"`
	Index         int    `json:"index"`
	TokenEstimate int    `json:"token_estimate"`
	Source        string `json:"source"`
}

// IndexedPoint is what the vector index stores: one point per chunk.
// Every point carries BotID so searches and deletes can be scoped to a
// single bot; a point without it would leak across tenants.
type IndexedPoint struct {
	ID      string
	Vector  []float32
	Payload PointPayload
}

type PointPayload struct {
	BotID         string
	Text          string
	ChunkIndex    int
	Source        string
	TokenEstimate int
}

// Validate is the index-boundary check; upserts refuse points that could
// not be filtered back out by bot.
func (p IndexedPoint) Validate() error {
	if p.ID == "" {
		return WrapError(ErrInvalidInput, "validate point", errMissingField("id"))
	}
	if len(p.Vector) == 0 {
		return WrapError(ErrInvalidInput, "validate point", errMissingField("vector"))
	}
	if p.Payload.BotID == "" {
		return WrapError(ErrInvalidInput, "validate point", errMissingField("payload.bot_id"))
	}
	return nil
}

// RetrievedContext is an ephemeral search hit, ranked by descending score.
type RetrievedContext struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
	Source     string  `json:"source,omitempty"`
}

// IngestResult is returned by a completed ingestion run.
type IngestResult struct {
	ChunksCreated int `json:"chunks_created"`
	VectorsStored int `json:"vectors_stored"`
}

type fieldError string

func (e fieldError) Error() string { return "missing " + string(e) }

func errMissingField(name string) error { return fieldError(name) }
