package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chirplabs/chirp/internal/core/domain"
)

type chatBotsFake struct {
	bot         *domain.Bot
	err         error
	incremented []string
}

func (f *chatBotsFake) GetByIDAndKey(_ context.Context, botID, apiKey string) (*domain.Bot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.bot == nil || f.bot.ID != botID || f.bot.APIKey != apiKey {
		return nil, domain.WrapError(domain.ErrUnauthorized, "lookup bot", errors.New("no match"))
	}
	copyBot := *f.bot
	return &copyBot, nil
}

func (f *chatBotsFake) IncrementMessageCount(_ context.Context, botID string) error {
	f.incremented = append(f.incremented, botID)
	return nil
}

type chatMessagesFake struct {
	conv       *domain.Conversation
	stored     []domain.ChatMessage
	historyErr error
	saveErr    error

	savedUser      string
	savedAssistant string
}

func (f *chatMessagesFake) EnsureConversation(_ context.Context, botID, sessionID string) (*domain.Conversation, error) {
	if f.conv != nil {
		return f.conv, nil
	}
	f.conv = &domain.Conversation{ID: "conv-1", BotID: botID, SessionID: sessionID}
	return f.conv, nil
}

func (f *chatMessagesFake) RecentMessages(context.Context, string, int) ([]domain.ChatMessage, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.stored, nil
}

func (f *chatMessagesFake) SaveTurn(_ context.Context, _ string, userMessage, assistantMessage string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedUser = userMessage
	f.savedAssistant = assistantMessage
	return nil
}

type chatAdmissionFake struct {
	allow bool
	calls int
}

func (f *chatAdmissionFake) Allow(string) bool {
	f.calls++
	return f.allow
}

type chatEmbedderFake struct {
	vector []float32
	err    error
}

func (f *chatEmbedderFake) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *chatEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type chatIndexFake struct {
	contexts []domain.RetrievedContext
	err      error
}

func (f *chatIndexFake) EnsureCollection(context.Context, int) error { return nil }
func (f *chatIndexFake) Upsert(context.Context, string, []domain.IndexedPoint) error {
	return errors.New("not implemented")
}
func (f *chatIndexFake) DeleteAll(context.Context, string) error { return nil }

func (f *chatIndexFake) Search(context.Context, string, []float32, int, float64) ([]domain.RetrievedContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.contexts, nil
}

type chatGeneratorFake struct {
	fragments []string
	err       error
	prompt    domain.ChatPrompt
	calls     int
}

func (f *chatGeneratorFake) GenerateStream(_ context.Context, prompt domain.ChatPrompt, onFragment func(string) error) error {
	f.calls++
	f.prompt = prompt
	for _, fr := range f.fragments {
		if err := onFragment(fr); err != nil {
			return err
		}
	}
	return f.err
}

func chatFixture() (*chatBotsFake, *chatMessagesFake, *chatAdmissionFake, *chatIndexFake, *chatGeneratorFake, *ChatUseCase) {
	bots := &chatBotsFake{bot: &domain.Bot{ID: "bot-1", Name: "Acme Helper", APIKey: "key-1", MessageLimit: 100}}
	messages := &chatMessagesFake{}
	admission := &chatAdmissionFake{allow: true}
	index := &chatIndexFake{contexts: []domain.RetrievedContext{{Text: "Refund window is 30 days.", Score: 0.91}}}
	generator := &chatGeneratorFake{fragments: []string{"Refunds ", "take 30 days."}}
	retriever := NewRetriever(&chatEmbedderFake{vector: []float32{0.1, 0.2}}, index, 3, 0.6)
	uc := NewChatUseCase(bots, messages, admission, retriever, generator, ChatConfig{})
	return bots, messages, admission, index, generator, uc
}

func chatReq() domain.ChatRequest {
	return domain.ChatRequest{BotID: "bot-1", APIKey: "key-1", SessionID: "sess-1", Message: "How long do refunds take?"}
}

func TestChatHappyPath(t *testing.T) {
	bots, messages, _, _, generator, uc := chatFixture()

	var got strings.Builder
	err := uc.Chat(context.Background(), chatReq(), func(fragment string) error {
		got.WriteString(fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got.String() != "Refunds take 30 days." {
		t.Fatalf("unexpected streamed answer %q", got.String())
	}
	if !strings.Contains(generator.prompt.System, "Refund window is 30 days.") {
		t.Fatalf("expected retrieved context in system prompt")
	}
	if messages.savedUser != "How long do refunds take?" || messages.savedAssistant != "Refunds take 30 days." {
		t.Fatalf("expected persisted turn, got %q / %q", messages.savedUser, messages.savedAssistant)
	}
	if len(bots.incremented) != 1 || bots.incremented[0] != "bot-1" {
		t.Fatalf("expected one message count increment, got %v", bots.incremented)
	}
}

func TestChatUnauthorized(t *testing.T) {
	_, _, admission, _, generator, uc := chatFixture()

	req := chatReq()
	req.APIKey = "wrong"
	err := uc.Chat(context.Background(), req, func(string) error { return nil })
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if admission.calls != 0 {
		t.Fatalf("admission must not be consulted before auth passes")
	}
	if generator.calls != 0 {
		t.Fatalf("generator must not run for rejected requests")
	}
}

func TestChatQuotaExhausted(t *testing.T) {
	bots, _, admission, _, generator, uc := chatFixture()
	bots.bot.MessageCount = 100

	err := uc.Chat(context.Background(), chatReq(), func(string) error { return nil })
	if !domain.IsKind(err, domain.ErrQuotaExhausted) {
		t.Fatalf("expected quota rejection, got %v", err)
	}
	if admission.calls != 0 {
		t.Fatalf("rate window must not be consumed when quota is spent")
	}
	if generator.calls != 0 {
		t.Fatalf("generator must not run for rejected requests")
	}
}

func TestChatRateWindowRejected(t *testing.T) {
	_, messages, admission, _, generator, uc := chatFixture()
	admission.allow = false

	err := uc.Chat(context.Background(), chatReq(), func(string) error { return nil })
	if !domain.IsKind(err, domain.ErrAdmissionRejected) {
		t.Fatalf("expected admission rejection, got %v", err)
	}
	if generator.calls != 0 {
		t.Fatalf("generator must not run for rejected requests")
	}
	if messages.savedUser != "" {
		t.Fatalf("rejected turn must not be persisted")
	}
}

func TestChatRetrievalFailureDegrades(t *testing.T) {
	_, messages, _, index, generator, uc := chatFixture()
	index.err = errors.New("qdrant down")

	err := uc.Chat(context.Background(), chatReq(), func(string) error { return nil })
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if strings.Contains(generator.prompt.System, "Context from knowledge base") {
		t.Fatalf("degraded turn must carry no context section")
	}
	if messages.savedAssistant == "" {
		t.Fatalf("degraded turn still persists the transcript")
	}
}

func TestChatGeneratorErrorNotPersisted(t *testing.T) {
	bots, messages, _, _, generator, uc := chatFixture()
	generator.fragments = []string{"partial "}
	generator.err = errors.New("stream reset")

	err := uc.Chat(context.Background(), chatReq(), func(string) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "generate answer") {
		t.Fatalf("expected generation error, got %v", err)
	}
	if messages.savedUser != "" {
		t.Fatalf("failed turn must not be persisted")
	}
	if len(bots.incremented) != 0 {
		t.Fatalf("failed turn must not consume quota")
	}
}

func TestChatPersistFailureIsSwallowed(t *testing.T) {
	bots, messages, _, _, _, uc := chatFixture()
	messages.saveErr = errors.New("db down")

	err := uc.Chat(context.Background(), chatReq(), func(string) error { return nil })
	if err != nil {
		t.Fatalf("persistence failure must not surface, got %v", err)
	}
	if len(bots.incremented) != 0 {
		t.Fatalf("quota must not advance when the turn was not saved")
	}
}

func TestChatPrefersStoredHistory(t *testing.T) {
	_, messages, _, _, generator, uc := chatFixture()
	messages.stored = []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "stored question"},
		{Role: domain.RoleAssistant, Content: "stored answer"},
	}

	req := chatReq()
	req.History = []domain.ChatMessage{{Role: domain.RoleUser, Content: "client question"}}
	if err := uc.Chat(context.Background(), req, func(string) error { return nil }); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if len(generator.prompt.Messages) != 3 {
		t.Fatalf("expected stored history plus question, got %d messages", len(generator.prompt.Messages))
	}
	if generator.prompt.Messages[0].Content != "stored question" {
		t.Fatalf("expected server-side history to win, got %q", generator.prompt.Messages[0].Content)
	}
}

func TestChatFallsBackToClientHistory(t *testing.T) {
	_, messages, _, _, generator, uc := chatFixture()
	messages.historyErr = errors.New("db timeout")

	req := chatReq()
	req.History = []domain.ChatMessage{{Role: domain.RoleUser, Content: "client question"}}
	if err := uc.Chat(context.Background(), req, func(string) error { return nil }); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if generator.prompt.Messages[0].Content != "client question" {
		t.Fatalf("expected client history fallback, got %q", generator.prompt.Messages[0].Content)
	}
}

func TestChatValidation(t *testing.T) {
	_, _, _, _, _, uc := chatFixture()

	cases := map[string]domain.ChatRequest{
		"empty message": {BotID: "bot-1", APIKey: "key-1", SessionID: "s", Message: "   "},
		"no session":    {BotID: "bot-1", APIKey: "key-1", Message: "hi"},
		"no bot":        {APIKey: "key-1", SessionID: "s", Message: "hi"},
		"bad role": {BotID: "bot-1", APIKey: "key-1", SessionID: "s", Message: "hi",
			History: []domain.ChatMessage{{Role: "system", Content: "x"}}},
		"oversized message": {BotID: "bot-1", APIKey: "key-1", SessionID: "s",
			Message: strings.Repeat("a", maxMessageChars+1)},
	}
	for name, req := range cases {
		if err := uc.Chat(context.Background(), req, func(string) error { return nil }); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
}
