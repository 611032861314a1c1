// Package llm abstracts the text-generation backend behind a small
// streaming interface so the engine never knows which provider serves it.
package llm

import "context"

// Message is one role-tagged entry of the conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the polymorphic generation source. Implementations handle
// protocol-specific details such as request formatting, authentication and
// response parsing.
type Provider interface {
	// Stream issues a generation call and returns a channel of incremental
	// text chunks. The channel is closed when the upstream source is
	// exhausted or fails mid-stream; a pre-flight failure is returned as an
	// error with a nil channel.
	Stream(ctx context.Context, system string, messages []Message) (<-chan string, error)
}

// Config holds provider construction parameters. Selection between the real
// client and the mock is decided here, once, at construction; nothing is
// read from the process environment mid-request.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Mock        bool
	MockReply   string
}
