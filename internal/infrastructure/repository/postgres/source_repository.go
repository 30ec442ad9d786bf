package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chirplabs/chirp/internal/core/domain"
)

type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) Create(ctx context.Context, src *domain.KnowledgeSource) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO knowledge_sources (
	id, bot_id, source_type, source, storage_key, status, chunks_created, vectors_stored, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		src.ID, src.BotID, src.SourceType, src.Source, src.StorageKey, string(src.Status),
		src.ChunksCreated, src.VectorsStored, src.Error, src.CreatedAt, src.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert knowledge source: %w", err)
	}
	return nil
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, bot_id, source_type, source, storage_key, status, chunks_created, vectors_stored, error_message, created_at, updated_at
FROM knowledge_sources
WHERE id = $1
`, id)

	var src domain.KnowledgeSource
	var status string
	err := row.Scan(
		&src.ID, &src.BotID, &src.SourceType, &src.Source, &src.StorageKey, &status,
		&src.ChunksCreated, &src.VectorsStored, &src.Error, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSourceNotFound, "get knowledge source", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan knowledge source: %w", err)
	}
	src.Status = domain.SourceStatus(status)
	return &src, nil
}

func (r *SourceRepository) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE knowledge_sources
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update source status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update source status rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrSourceNotFound, "update source status", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *SourceRepository) SetResult(ctx context.Context, id string, result domain.IngestResult) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE knowledge_sources
SET chunks_created = $2, vectors_stored = $3, updated_at = $4
WHERE id = $1
`, id, result.ChunksCreated, result.VectorsStored, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save ingest result: %w", err)
	}
	return nil
}

func (r *SourceRepository) DeleteByBot(ctx context.Context, botID string) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM knowledge_sources
WHERE bot_id = $1
`, botID)
	if err != nil {
		return fmt.Errorf("delete knowledge sources: %w", err)
	}
	return nil
}
