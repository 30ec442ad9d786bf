package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/chirplabs/chirp/internal/core/domain"
)

func newBotRepoWithMock(t *testing.T) (*BotRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &BotRepository{db: db}, mock, func() { _ = db.Close() }
}

func botRows(apiKey string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "name", "api_key", "message_count", "message_limit", "created_at", "updated_at"}).
		AddRow("bot-1", "Acme Helper", apiKey, 5, 100, now, now)
}

func TestGetByIDAndKeySuccess(t *testing.T) {
	repo, mock, done := newBotRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, name, api_key, message_count, message_limit").
		WithArgs("bot-1").
		WillReturnRows(botRows("key-1"))

	bot, err := repo.GetByIDAndKey(context.Background(), "bot-1", "key-1")
	if err != nil {
		t.Fatalf("GetByIDAndKey() error = %v", err)
	}
	if bot.Name != "Acme Helper" || bot.MessageCount != 5 {
		t.Fatalf("unexpected bot %+v", bot)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDAndKeyNotFound(t *testing.T) {
	repo, mock, done := newBotRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, name, api_key, message_count, message_limit").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIDAndKey(context.Background(), "missing", "key-1")
	if !domain.IsKind(err, domain.ErrBotNotFound) {
		t.Fatalf("expected ErrBotNotFound, got %v", err)
	}
}

func TestGetByIDAndKeyWrongKey(t *testing.T) {
	repo, mock, done := newBotRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, name, api_key, message_count, message_limit").
		WithArgs("bot-1").
		WillReturnRows(botRows("key-1"))

	_, err := repo.GetByIDAndKey(context.Background(), "bot-1", "wrong")
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestIncrementMessageCountNotFound(t *testing.T) {
	repo, mock, done := newBotRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE bots").
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementMessageCount(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrBotNotFound) {
		t.Fatalf("expected ErrBotNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIncrementMessageCountSuccess(t *testing.T) {
	repo, mock, done := newBotRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE bots").
		WithArgs("bot-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.IncrementMessageCount(context.Background(), "bot-1"); err != nil {
		t.Fatalf("IncrementMessageCount() error = %v", err)
	}
}
