package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/chirplabs/chirp/internal/infrastructure/resilience"
)

const (
	defaultBaseURL    = "https://api.openai.com"
	defaultChatModel  = "gpt-4o-mini"
	defaultEmbedModel = "text-embedding-3-small"
	defaultDimensions = 1536
)

type Config struct {
	BaseURL         string
	APIKey          string
	ChatModel       string
	EmbedModel      string
	EmbedDimensions int

	// Client-side pacing shared by embedding and generation calls.
	RequestsPerSecond float64
	Burst             int
}

func (c Config) normalize() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.ChatModel == "" {
		c.ChatModel = defaultChatModel
	}
	if c.EmbedModel == "" {
		c.EmbedModel = defaultEmbedModel
	}
	if c.EmbedDimensions <= 0 {
		c.EmbedDimensions = defaultDimensions
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	return c
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	cfg = cfg.normalize()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		executor:   executor,
	}
}

func (c *Client) pace(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
