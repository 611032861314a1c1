package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"interview-lab/contract"
	"interview-lab/domain"
	"interview-lab/domain/event"
	"interview-lab/domain/script"
	"interview-lab/llm"
	"interview-lab/moderation"
	"interview-lab/observability"
	"interview-lab/repositories"
)

// maxNameLength bounds the display name captured from the first user turn.
const maxNameLength = 80

// Composer orchestrates a single inbound message: gate validation, turn
// recording, time-box enforcement, generation and the fan-out of the
// resulting stream to the caller and to background transcript capture.
type Composer struct {
	log          *slog.Logger
	gate         Gate
	lifecycle    Lifecycle
	timebox      TimeBoxGuard
	participants repositories.IParticipantRepository
	turns        repositories.ITurnRepository
	provider     llm.Provider
	scripts      script.Source
	redactor     *moderation.Redactor
	prompts      *PromptBuilder
	events       contract.Publisher
	monitor      *observability.Monitoring
	bufferSize   int
}

func NewComposer(
	log *slog.Logger,
	gate Gate,
	lifecycle Lifecycle,
	timebox TimeBoxGuard,
	participants repositories.IParticipantRepository,
	turns repositories.ITurnRepository,
	provider llm.Provider,
	scripts script.Source,
	redactor *moderation.Redactor,
	prompts *PromptBuilder,
	events contract.Publisher,
	monitor *observability.Monitoring,
	bufferSize int,
) *Composer {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Composer{
		log:          log,
		gate:         gate,
		lifecycle:    lifecycle,
		timebox:      timebox,
		participants: participants,
		turns:        turns,
		provider:     provider,
		scripts:      scripts,
		redactor:     redactor,
		prompts:      prompts,
		events:       events,
		monitor:      monitor,
		bufferSize:   bufferSize,
	}
}

// Reply is one logical assistant reply. Chunks is the client-facing
// consumer; Persisted closes once the background transcript capture has
// finished, successfully or not. Delivery never waits on persistence.
type Reply struct {
	Chunks    <-chan string
	Persisted <-chan struct{}
}

// Respond handles one inbound message for the participant owning token.
// history is the caller-supplied conversation so far, newest message last.
func (c *Composer) Respond(ctx context.Context, token string, history []llm.Message) (*Reply, error) {
	p, err := c.gate.Resolve(token)
	if err != nil {
		return nil, err
	}
	sc, err := c.scripts.Get(p.SessionID)
	if err != nil {
		return nil, err
	}
	p, err = c.lifecycle.EnsureStarted(p)
	if err != nil {
		return nil, err
	}

	// The opening assistant question is not written at invite time; it is
	// captured lazily from the caller-supplied transcript on the first
	// round-trip.
	maxIndex, err := c.turns.MaxIndex(p.ID)
	if err != nil {
		return nil, err
	}
	if maxIndex == 0 {
		if opening, ok := firstByRole(history, "assistant"); ok {
			c.appendTurn(p.ID, domain.RoleAssistant, opening)
		}
	}

	greeting := ""
	userText, _ := lastByRole(history, "user")
	if strings.TrimSpace(userText) != "" {
		prior, err := c.turns.List(p.ID)
		if err != nil {
			return nil, err
		}
		firstUserTurn := countByRole(prior, domain.RoleUser) == 0
		c.appendTurn(p.ID, domain.RoleUser, userText)

		if firstUserTurn && p.DisplayName == "" {
			if name := captureName(userText); name != "" {
				greeting = fmt.Sprintf("Nice to meet you, %s. ", name)
				if err := c.participants.SetName(p.ID, name); err != nil {
					c.log.Error("Failed to persist captured name", "participant", p.ID, "error", err)
				}
			}
		}
	}

	limit := time.Duration(sc.LimitMinutes) * time.Minute
	if c.timebox.Exceeded(p, limit) {
		return c.closeOnTimeout(p)
	}

	transcript, err := c.turns.List(p.ID)
	if err != nil {
		return nil, err
	}
	messages := c.prompts.History(transcript, c.redactor.Redact)
	system := c.prompts.System(sc)

	c.monitor.GenerationStarted()
	src, err := c.provider.Stream(ctx, system, messages)
	if err != nil {
		c.monitor.GenerationFailed()
		c.log.Warn("Generation backend failed, serving fallback", "participant", p.ID, "error", err)
		c.events.Publish(event.GenerationFailed{ParticipantID: p.ID, Err: err.Error(), At: time.Now().UTC()})
		src = nil
	}

	return c.tee(ctx, p, sc, greeting, src, transcript), nil
}

// closeOnTimeout streams the fixed closing utterance as if it were a
// normal assistant reply. Being synthetic, it is persisted directly and
// synchronously instead of going through the fan-out.
func (c *Composer) closeOnTimeout(p domain.Participant) (*Reply, error) {
	c.appendTurn(p.ID, domain.RoleAssistant, ClosingMessage)
	if _, err := c.lifecycle.Complete(p, domain.ReasonTimeout); err != nil {
		return nil, err
	}
	c.monitor.Completed()

	chunks := make(chan string, 1)
	chunks <- ClosingMessage
	close(chunks)
	persisted := make(chan struct{})
	close(persisted)
	return &Reply{Chunks: chunks, Persisted: persisted}, nil
}

// tee splits the generation source into two independently-paced consumers:
// the client-facing chunk channel and a background persistence drain. A
// staged greeting is emitted as the very first chunk on both branches so
// the delivered and persisted text stay byte-identical. If the source
// produces nothing (pre-flight failure or an empty mid-stream abort) the
// deterministic fallback reply is substituted on both branches.
func (c *Composer) tee(
	ctx context.Context,
	p domain.Participant,
	sc script.Script,
	greeting string,
	src <-chan string,
	transcript []domain.Turn,
) *Reply {
	deliver := make(chan string, c.bufferSize)
	persist := make(chan string, c.bufferSize)
	persisted := make(chan struct{})

	c.monitor.StreamOpened()

	// Producer: sole reader of the upstream source. Delivery stops if the
	// client goes away, but draining continues so the transcript stays
	// complete for abandoned connections.
	go func() {
		defer close(deliver)
		defer close(persist)
		defer c.monitor.StreamClosed()

		delivering := true
		forward := func(chunk string) {
			if delivering {
				select {
				case deliver <- chunk:
				case <-ctx.Done():
					delivering = false
				}
			}
			persist <- chunk
		}

		if greeting != "" {
			forward(greeting)
		}
		produced := false
		if src != nil {
			for chunk := range src {
				produced = true
				forward(chunk)
			}
		}
		if !produced {
			forward(c.fallbackReply(sc, transcript))
		}
	}()

	// Persistence drain: detached from delivery; appends the full reply as
	// one assistant turn once the source is exhausted. Failures here are
	// logged only and never affect the response already under way.
	go func() {
		defer close(persisted)

		var sb strings.Builder
		for chunk := range persist {
			sb.WriteString(chunk)
		}
		full := sb.String()
		if full == "" {
			return
		}
		if _, err := c.turns.Append(p.ID, domain.RoleAssistant, full); err != nil {
			c.monitor.PersistFailed()
			c.log.Error("Failed to persist assistant turn", "participant", p.ID, "error", err)
			c.events.Publish(event.PersistenceFailed{ParticipantID: p.ID, Err: err.Error(), At: time.Now().UTC()})
			return
		}
		c.monitor.TurnRecorded()
		c.events.Publish(event.TurnRecorded{
			Turn: domain.Turn{ParticipantID: p.ID, Role: domain.RoleAssistant, Content: full},
			At:   time.Now().UTC(),
		})
		c.maybeFinish(p, sc, transcript, full)
	}()

	return &Reply{Chunks: deliver, Persisted: persisted}
}

// maybeFinish records the natural end of script: every checklist topic
// covered and the reply carrying the script's closing marker.
func (c *Composer) maybeFinish(p domain.Participant, sc script.Script, transcript []domain.Turn, reply string) {
	if sc.ClosingMarker == "" || !strings.Contains(reply, sc.ClosingMarker) {
		return
	}
	covered := assistantContents(transcript)
	covered = append(covered, reply)
	if _, remaining := sc.NextUnanswered(covered); remaining {
		return
	}
	if _, err := c.lifecycle.Complete(p, domain.ReasonFinished); err != nil {
		c.log.Error("Failed to record natural completion", "participant", p.ID, "error", err)
		return
	}
	c.monitor.Completed()
}

// fallbackReply is the deterministic substitute when generation fails: the
// next unanswered checklist question, or a generic probe once every topic
// was covered.
func (c *Composer) fallbackReply(sc script.Script, transcript []domain.Turn) string {
	if q, ok := sc.NextUnanswered(assistantContents(transcript)); ok {
		return q.Prompt
	}
	return "Thanks. Is there anything else you would like to add?"
}

func (c *Composer) appendTurn(participantID string, role domain.Role, content string) {
	index, err := c.turns.Append(participantID, role, content)
	if err != nil {
		c.log.Error("Failed to append turn", "participant", participantID, "role", role, "error", err)
		return
	}
	c.monitor.TurnRecorded()
	c.events.Publish(event.TurnRecorded{
		Turn: domain.Turn{ParticipantID: participantID, Index: index, Role: role, Content: content},
		At:   time.Now().UTC(),
	})
}

// captureName derives a display name from the first line of the first user
// turn: trimmed and truncated to 80 characters.
func captureName(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	name := strings.TrimSpace(line)
	runes := []rune(name)
	if len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}
	return name
}

func firstByRole(history []llm.Message, role string) (string, bool) {
	for _, m := range history {
		if m.Role == role {
			return m.Content, true
		}
	}
	return "", false
}

func lastByRole(history []llm.Message, role string) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == role {
			return history[i].Content, true
		}
	}
	return "", false
}

func countByRole(turns []domain.Turn, role domain.Role) int {
	count := 0
	for _, t := range turns {
		if t.Role == role {
			count++
		}
	}
	return count
}

func assistantContents(turns []domain.Turn) []string {
	contents := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Role == domain.RoleAssistant {
			contents = append(contents, t.Content)
		}
	}
	return contents
}
