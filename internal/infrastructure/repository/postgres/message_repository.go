package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chirplabs/chirp/internal/core/domain"
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) EnsureConversation(ctx context.Context, botID, sessionID string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversations (id, bot_id, session_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (bot_id, session_id) DO NOTHING
`, uuid.NewString(), botID, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation insert: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
SELECT id, bot_id, session_id, created_at
FROM conversations
WHERE bot_id = $1 AND session_id = $2
`, botID, sessionID)

	var conv domain.Conversation
	if err := row.Scan(&conv.ID, &conv.BotID, &conv.SessionID, &conv.CreatedAt); err != nil {
		return nil, fmt.Errorf("ensure conversation select: %w", err)
	}
	return &conv, nil
}

func (r *MessageRepository) RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content
FROM messages
WHERE conversation_id = $1
ORDER BY created_at DESC
LIMIT $2
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan recent message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent messages: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SaveTurn writes the user question and assistant answer atomically so the
// transcript never holds a question without its answer.
func (r *MessageRepository) SaveTurn(ctx context.Context, conversationID, userMessage, assistantMessage string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin turn tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	const insert = `
INSERT INTO messages (id, conversation_id, role, content, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), conversationID, domain.RoleUser, userMessage, now); err != nil {
		return fmt.Errorf("insert user message: %w", err)
	}
	// The assistant row sorts after the user row even inside one transaction.
	if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), conversationID, domain.RoleAssistant, assistantMessage, now.Add(time.Microsecond)); err != nil {
		return fmt.Errorf("insert assistant message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn tx: %w", err)
	}
	return nil
}
