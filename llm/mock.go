package llm

import "context"

// DefaultMockReply is served when no reply is configured.
const DefaultMockReply = "Thank you, noted. Could you tell me a bit more about that?"

// MockProvider returns one fixed deterministic string as a single-chunk
// stream. It never fails; used for tests and local development.
type MockProvider struct {
	Reply string
}

func NewMockProvider(reply string) MockProvider {
	if reply == "" {
		reply = DefaultMockReply
	}
	return MockProvider{Reply: reply}
}

func (m MockProvider) Stream(_ context.Context, _ string, _ []Message) (<-chan string, error) {
	ch := make(chan string, 1)
	ch <- m.Reply
	close(ch)
	return ch, nil
}
