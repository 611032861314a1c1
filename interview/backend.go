package interview

import (
	"log/slog"

	"interview-lab/llm"
	"interview-lab/llm/openai"
)

// NewBackend selects the generation backend once, from explicit
// configuration. The choice is never renegotiated mid-stream and nothing is
// read from the process environment here.
func NewBackend(cfg llm.Config, log *slog.Logger) llm.Provider {
	if cfg.Mock {
		return llm.NewMockProvider(cfg.MockReply)
	}
	return openai.New(cfg, log)
}
