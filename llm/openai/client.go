// Package openai implements llm.Provider against OpenAI-compatible
// chat-completions endpoints with server-sent-event streaming.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"interview-lab/llm"
)

// Client implements the llm.Provider interface for OpenAI-compatible APIs.
type Client struct {
	config     llm.Config
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a streaming OpenAI-compatible client.
func New(config llm.Config, log *slog.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		log: log,
	}
}

// chatRequest is the chat completions request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

// streamEvent is one decoded SSE payload of a streamed completion.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Stream issues a streaming chat completion and forwards delta contents as
// they arrive. The returned channel is closed on upstream exhaustion or on
// a mid-stream read failure (logged, not surfaced: the caller substitutes a
// fallback when nothing was produced).
func (c *Client) Stream(ctx context.Context, system string, messages []llm.Message) (<-chan string, error) {
	reqMessages := make([]llm.Message, 0, len(messages)+1)
	if system != "" {
		reqMessages = append(reqMessages, llm.Message{Role: "system", Content: system})
	}
	reqMessages = append(reqMessages, messages...)

	reqBody := chatRequest{
		Model:    c.config.Model,
		Messages: reqMessages,
		Stream:   true,
	}
	if c.config.MaxTokens > 0 {
		reqBody.MaxTokens = c.config.MaxTokens
	}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		reqBody.Temperature = &temp
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	ch := make(chan string, 16)
	go c.readEvents(ctx, resp.Body, ch)
	return ch, nil
}

// readEvents scans the SSE body line by line and forwards delta contents.
func (c *Client) readEvents(ctx context.Context, body io.ReadCloser, ch chan<- string) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return
		}

		var evt streamEvent
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			c.log.Warn("Skipping malformed stream event", "error", err)
			continue
		}
		if len(evt.Choices) == 0 {
			continue
		}
		content := evt.Choices[0].Delta.Content
		if content == "" {
			continue
		}

		select {
		case ch <- content:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.log.Warn("Stream terminated early", "error", err)
	}
}
