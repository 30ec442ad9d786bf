package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chirplabs/chirp/internal/config"
	"github.com/chirplabs/chirp/internal/core/ports"
	"github.com/chirplabs/chirp/internal/core/usecase"
	"github.com/chirplabs/chirp/internal/infrastructure/admission"
	"github.com/chirplabs/chirp/internal/infrastructure/chunking"
	"github.com/chirplabs/chirp/internal/infrastructure/llm/openai"
	"github.com/chirplabs/chirp/internal/infrastructure/queue/nats"
	"github.com/chirplabs/chirp/internal/infrastructure/repository/postgres"
	"github.com/chirplabs/chirp/internal/infrastructure/resilience"
	"github.com/chirplabs/chirp/internal/infrastructure/storage/localfs"
	"github.com/chirplabs/chirp/internal/infrastructure/vector/inmemory"
	"github.com/chirplabs/chirp/internal/infrastructure/vector/qdrant"
)

// App wires every adapter behind the core use cases. Both binaries build the
// same App; the api serves ChatUC over HTTP while the worker drains the queue
// into IngestUC.
type App struct {
	Config config.Config

	DB    *sql.DB
	Queue *nats.Queue
	Index ports.VectorIndex

	Bots     ports.BotStore
	Messages ports.MessageStore
	Sources  ports.SourceStore

	Retriever *usecase.Retriever
	ChatUC    *usecase.ChatUseCase
	IngestUC  *usecase.IngestUseCase

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.DB = db
	app.onClose(func() { _ = db.Close() })

	if err := postgres.EnsureSchema(ctx, db, cfg.DefaultMessageCap); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	bots := postgres.NewBotRepository(db)
	messages := postgres.NewMessageRepository(db)
	sources := postgres.NewSourceRepository(db)
	app.Bots = bots
	app.Messages = messages
	app.Sources = sources

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.onClose(queue.Close)

	index, err := newVectorIndex(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Index = index
	if closer, ok := index.(interface{ Close() error }); ok {
		app.onClose(func() { _ = closer.Close() })
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := index.EnsureCollection(ensureCtx, cfg.OpenAIEmbedDims); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure vector collection: %w", err)
	}

	llmClient := openai.New(openai.Config{
		BaseURL:           cfg.OpenAIBaseURL,
		APIKey:            cfg.OpenAIAPIKey,
		ChatModel:         cfg.OpenAIChatModel,
		EmbedModel:        cfg.OpenAIEmbedModel,
		EmbedDimensions:   cfg.OpenAIEmbedDims,
		RequestsPerSecond: cfg.OpenAIRPS,
		Burst:             cfg.OpenAIBurst,
	}, executor)
	embedder := openai.NewEmbedder(llmClient)
	generator := openai.NewGenerator(llmClient)

	chunker := chunking.New(cfg.ChunkTargetTokens, cfg.ChunkOverlapTokens)

	limiter := admission.New(
		time.Duration(cfg.RateWindowSeconds)*time.Second,
		cfg.RateMaxMessages,
	)
	app.onClose(limiter.StartSweep(time.Minute))

	retriever := usecase.NewRetriever(embedder, index, cfg.RetrievalTopK, cfg.RetrievalFloor)
	app.Retriever = retriever
	app.IngestUC = usecase.NewIngestUseCase(sources, storage, queue, chunker, embedder, index)
	app.ChatUC = usecase.NewChatUseCase(bots, messages, limiter, retriever, generator, usecase.ChatConfig{
		HistoryLimit: cfg.ChatHistoryLimit,
	})

	return app, nil
}

func newVectorIndex(cfg config.Config) (ports.VectorIndex, error) {
	switch cfg.VectorBackend {
	case "qdrant", "":
		store, err := qdrant.New(qdrant.Config{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantUseTLS,
			Collection: cfg.QdrantCollection,
		})
		if err != nil {
			return nil, fmt.Errorf("init qdrant: %w", err)
		}
		return store, nil
	case "memory":
		return inmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// Ready probes the dependencies a request would touch.
func (a *App) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
