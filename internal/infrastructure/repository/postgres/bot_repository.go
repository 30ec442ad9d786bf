package postgres

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chirplabs/chirp/internal/core/domain"
)

type BotRepository struct {
	db *sql.DB
}

func NewBotRepository(db *sql.DB) *BotRepository {
	return &BotRepository{db: db}
}

// GetByIDAndKey loads the bot and verifies the caller's key against it.
// An unknown bot and a wrong key are distinct failures so the handler can
// answer 404 versus 401.
func (r *BotRepository) GetByIDAndKey(ctx context.Context, botID, apiKey string) (*domain.Bot, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, api_key, message_count, message_limit, created_at, updated_at
FROM bots
WHERE id = $1
`, botID)

	var bot domain.Bot
	err := row.Scan(
		&bot.ID, &bot.Name, &bot.APIKey, &bot.MessageCount, &bot.MessageLimit, &bot.CreatedAt, &bot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrBotNotFound, "get bot", fmt.Errorf("id %s", botID))
		}
		return nil, fmt.Errorf("scan bot: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(bot.APIKey), []byte(apiKey)) != 1 {
		return nil, domain.WrapError(domain.ErrUnauthorized, "get bot", errors.New("api key mismatch"))
	}
	return &bot, nil
}

func (r *BotRepository) IncrementMessageCount(ctx context.Context, botID string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE bots
SET message_count = message_count + 1, updated_at = $2
WHERE id = $1
`, botID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment message count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment message count rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrBotNotFound, "increment message count", fmt.Errorf("id %s", botID))
	}
	return nil
}
