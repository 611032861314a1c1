package interview

import (
	"fmt"
	"log/slog"
	"strings"

	"interview-lab/domain"
	"interview-lab/domain/script"
	"interview-lab/llm"

	"github.com/pkoukk/tiktoken-go"
	"github.com/samber/lo"
)

// PromptBuilder assembles the system prompt from the script and converts
// the persisted transcript into provider messages, trimming the oldest
// turns when the history exceeds the token budget.
type PromptBuilder struct {
	encoder          *tiktoken.Tiktoken
	maxHistoryTokens int
	log              *slog.Logger
}

func NewPromptBuilder(maxHistoryTokens int, log *slog.Logger) *PromptBuilder {
	b := &PromptBuilder{maxHistoryTokens: maxHistoryTokens, log: log}
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Encoder assets unavailable (offline boot): fall back to a
		// character-based estimate rather than failing the engine.
		log.Warn("Token encoder unavailable, using character estimate", "error", err)
	} else {
		b.encoder = encoder
	}
	return b
}

// System builds the interviewer system prompt: base instructions, the time
// box guidance and the ordered checklist.
func (b *PromptBuilder) System(s script.Script) string {
	var sb strings.Builder
	sb.WriteString(s.BasePrompt)
	sb.WriteString(fmt.Sprintf(
		"\n\nThe interview is limited to %d minutes. Keep questions short and let the participant do the talking.",
		s.LimitMinutes))
	sb.WriteString("\n\nChecklist to cover, in order:\n")
	for i, q := range s.Questions {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, q.Topic, q.Prompt))
	}
	if s.ClosingMarker != "" {
		sb.WriteString(fmt.Sprintf(
			"\nOnce every checklist topic is covered, thank the participant and end your reply with %s.",
			s.ClosingMarker))
	}
	return sb.String()
}

// History converts persisted turns to provider messages, applying redact to
// user-authored content and dropping the oldest turns beyond the token
// budget. System-role turns are never sent to the provider.
func (b *PromptBuilder) History(turns []domain.Turn, redact func(string) string) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		if turn.Role == domain.RoleSystem {
			continue
		}
		content := turn.Content
		if turn.Role == domain.RoleUser && redact != nil {
			content = redact(content)
		}
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: content})
	}
	if b.maxHistoryTokens <= 0 {
		return messages
	}

	total := lo.SumBy(messages, func(m llm.Message) int { return b.countTokens(m.Content) })
	dropped := 0
	for total > b.maxHistoryTokens && len(messages) > 1 {
		total -= b.countTokens(messages[0].Content)
		messages = messages[1:]
		dropped++
	}
	if dropped > 0 {
		b.log.Debug("Trimmed history to token budget", "dropped", dropped, "budget", b.maxHistoryTokens)
	}
	return messages
}

func (b *PromptBuilder) countTokens(text string) int {
	if b.encoder != nil {
		return len(b.encoder.Encode(text, nil, nil))
	}
	// Rough estimate: four characters per token.
	return len(text)/4 + 1
}
