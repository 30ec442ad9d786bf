package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/chirplabs/chirp/internal/core/domain"
	"github.com/chirplabs/chirp/internal/core/ports"
)

const (
	maxMessageChars  = 10000
	maxClientHistory = 50
)

type ChatConfig struct {
	HistoryLimit int
}

// ChatUseCase drives one chat turn: admission gates, retrieval, prompt
// assembly, streamed generation, then transcript persistence. No state
// survives the turn outside the admission controller and the stores.
type ChatUseCase struct {
	bots      ports.BotStore
	messages  ports.MessageStore
	admission ports.AdmissionController
	retriever *Retriever
	generator ports.Generator
	cfg       ChatConfig
}

func NewChatUseCase(
	bots ports.BotStore,
	messages ports.MessageStore,
	admission ports.AdmissionController,
	retriever *Retriever,
	generator ports.Generator,
	cfg ChatConfig,
) *ChatUseCase {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &ChatUseCase{
		bots:      bots,
		messages:  messages,
		admission: admission,
		retriever: retriever,
		generator: generator,
		cfg:       cfg,
	}
}

// Chat runs the turn and forwards answer fragments through emit as they
// arrive. Both admission gates are consulted before any provider work; a
// retrieval failure degrades to an ungrounded (refusing) answer rather than
// aborting; persistence runs only after the stream completed naturally and
// its failure is logged, never surfaced.
func (uc *ChatUseCase) Chat(ctx context.Context, req domain.ChatRequest, emit func(string) error) error {
	if err := validateChatRequest(req); err != nil {
		return err
	}

	bot, err := uc.bots.GetByIDAndKey(ctx, req.BotID, req.APIKey)
	if err != nil {
		return fmt.Errorf("authenticate bot: %w", err)
	}

	if bot.QuotaExhausted() {
		return domain.WrapError(domain.ErrQuotaExhausted, "message quota",
			fmt.Errorf("bot reached its message limit (%d messages)", bot.MessageLimit))
	}
	if !uc.admission.Allow(req.SessionID) {
		return domain.WrapError(domain.ErrAdmissionRejected, "rate window",
			errors.New("too many messages for this session, try again later"))
	}

	conv, err := uc.messages.EnsureConversation(ctx, bot.ID, req.SessionID)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}

	history := uc.loadHistory(ctx, conv.ID, req.History)

	contexts, err := uc.retriever.Retrieve(ctx, bot.ID, req.Message)
	if err != nil {
		// Degraded turn: answer from the grounded fallback instead of failing.
		slog.Warn("retrieval degraded to empty context",
			"bot_id", bot.ID,
			"session_id", req.SessionID,
			"error", err,
		)
		contexts = nil
	}

	prompt := AssemblePrompt(bot.Name, contexts, history, req.Message, uc.cfg.HistoryLimit)

	var answer strings.Builder
	err = uc.generator.GenerateStream(ctx, prompt, func(fragment string) error {
		answer.WriteString(fragment)
		return emit(fragment)
	})
	if err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}

	uc.persistTurn(ctx, bot, conv.ID, req.Message, answer.String())
	return nil
}

// loadHistory prefers the server-side transcript; the client-supplied
// history is only a fallback for deployments without persistence.
func (uc *ChatUseCase) loadHistory(ctx context.Context, conversationID string, clientHistory []domain.ChatMessage) []domain.ChatMessage {
	stored, err := uc.messages.RecentMessages(ctx, conversationID, uc.cfg.HistoryLimit)
	if err != nil {
		slog.Warn("history load failed, using client history", "conversation_id", conversationID, "error", err)
		return clientHistory
	}
	if len(stored) == 0 {
		return clientHistory
	}
	return stored
}

func (uc *ChatUseCase) persistTurn(ctx context.Context, bot *domain.Bot, conversationID, userMessage, assistantMessage string) {
	if err := uc.messages.SaveTurn(ctx, conversationID, userMessage, assistantMessage); err != nil {
		slog.Error("persist chat turn", "conversation_id", conversationID, "error", err)
		return
	}
	if err := uc.bots.IncrementMessageCount(ctx, bot.ID); err != nil {
		slog.Error("increment message count", "bot_id", bot.ID, "error", err)
	}
}

func validateChatRequest(req domain.ChatRequest) error {
	if strings.TrimSpace(req.BotID) == "" || strings.TrimSpace(req.SessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate chat request", errors.New("bot_id and session_id are required"))
	}
	n := utf8.RuneCountInString(req.Message)
	if n == 0 || strings.TrimSpace(req.Message) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate chat request", errors.New("message is empty"))
	}
	if n > maxMessageChars {
		return domain.WrapError(domain.ErrInvalidInput, "validate chat request",
			fmt.Errorf("message exceeds %d characters", maxMessageChars))
	}
	if len(req.History) > maxClientHistory {
		return domain.WrapError(domain.ErrInvalidInput, "validate chat request",
			fmt.Errorf("history exceeds %d messages", maxClientHistory))
	}
	for _, m := range req.History {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			return domain.WrapError(domain.ErrInvalidInput, "validate chat request",
				fmt.Errorf("unknown history role %q", m.Role))
		}
	}
	return nil
}
