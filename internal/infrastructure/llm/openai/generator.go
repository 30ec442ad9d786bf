package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/chirplabs/chirp/internal/core/domain"
)

const (
	chatTemperature = 0.7
	chatMaxTokens   = 500

	streamDataPrefix = "data: "
	streamDoneMarker = "[DONE]"
)

// Generator streams chat completions. Generation is never retried: once a
// fragment has been forwarded the turn cannot be replayed without
// duplicating output. The circuit breaker still wraps the call so a dead
// provider fails fast instead of opening more streams.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateStream(ctx context.Context, prompt domain.ChatPrompt, onFragment func(string) error) error {
	messages := make([]map[string]string, 0, len(prompt.Messages)+1)
	messages = append(messages, map[string]string{"role": domain.RoleSystem, "content": prompt.System})
	for _, m := range prompt.Messages {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}

	request := map[string]any{
		"model":       g.client.cfg.ChatModel,
		"messages":    messages,
		"temperature": chatTemperature,
		"max_tokens":  chatMaxTokens,
		"stream":      true,
	}

	call := func(ctx context.Context) error {
		resp, err := g.client.postStream(ctx, "/v1/chat/completions", request, "generate")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return g.consumeStream(resp.Body, onFragment)
	}

	var err error
	if g.client.executor != nil {
		err = g.client.executor.ExecuteOnce(ctx, "openai_generate", call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded("generate", err)
	}
	return nil
}

func (g *Generator) consumeStream(body io.Reader, onFragment func(string) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, streamDataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(line, streamDataPrefix)
		if payload == streamDoneMarker {
			return nil
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if err := onFragment(content); err != nil {
				return fmt.Errorf("forward fragment: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read completion stream: %w", err)
	}
	// The provider closed the stream without the done marker.
	return nil
}
