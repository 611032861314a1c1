package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"interview-lab/domain"
	"interview-lab/domain/event"
	"interview-lab/domain/script"
	apperrors "interview-lab/errors"
	"interview-lab/llm"
	"interview-lab/moderation"
	"interview-lab/observability"
	"interview-lab/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

const mockReply = "Understood. Which tools do you rely on every day?"

// collectingPublisher records published events for assertions.
type collectingPublisher struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (p *collectingPublisher) Publish(e event.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// failingProvider simulates a backend outage before streaming starts.
type failingProvider struct{}

func (failingProvider) Stream(context.Context, string, []llm.Message) (<-chan string, error) {
	return nil, fmt.Errorf("provider unreachable")
}

// abortingProvider simulates a mid-call failure with nothing produced.
type abortingProvider struct{}

func (abortingProvider) Stream(context.Context, string, []llm.Message) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}

type fixture struct {
	composer     *Composer
	participants repositories.IParticipantRepository
	turns        repositories.TurnRepository
	events       *collectingPublisher
	clock        *fakeClock
	script       script.Script
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testScript() script.Script {
	return script.Script{
		SessionID:     "sess-1",
		BasePrompt:    "You are a friendly research interviewer.",
		LimitMinutes:  30,
		Model:         "gpt-4o-mini",
		ClosingMarker: "[END-OF-INTERVIEW]",
		Questions: []script.Question{
			{Topic: "daily tools", Prompt: "Which tools do you use every day?"},
			{Topic: "pain points", Prompt: "What slows you down the most?"},
		},
	}
}

func newFixture(t *testing.T, provider llm.Provider) *fixture {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	participants := repositories.NewParticipantRepository(db)
	turns := repositories.NewTurnRepository(db, log)
	events := &collectingPublisher{}
	clock := &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}

	sc := testScript()
	redactor, err := moderation.NewRedactor(nil, '*', log)
	req.NoError(err)

	composer := NewComposer(
		log,
		NewGate(participants),
		NewLifecycle(participants, events, log).WithClock(clock.Now),
		NewTimeBoxGuard().WithClock(clock.Now),
		participants,
		turns,
		provider,
		script.StaticSource{sc.SessionID: sc},
		redactor,
		NewPromptBuilder(0, log),
		events,
		observability.NewMonitoring(),
		8,
	)

	f := &fixture{
		composer:     composer,
		participants: participants,
		turns:        turns,
		events:       events,
		clock:        clock,
		script:       sc,
	}
	f.invite(t, "p-1", "tok-1")
	return f
}

func (f *fixture) invite(t *testing.T, id, token string) {
	t.Helper()
	require.NoError(t, f.participants.Create(domain.Participant{
		ID:        id,
		SessionID: f.script.SessionID,
		Token:     token,
		Status:    domain.StatusInvited,
		InvitedAt: f.clock.Now(),
	}))
}

func drain(t *testing.T, reply *Reply) string {
	t.Helper()
	var sb strings.Builder
	for chunk := range reply.Chunks {
		sb.WriteString(chunk)
	}
	select {
	case <-reply.Persisted:
	case <-time.After(2 * time.Second):
		t.Fatal("persistence drain did not finish in time")
	}
	return sb.String()
}

func firstChunk(t *testing.T, reply *Reply) (string, string) {
	t.Helper()
	first, ok := <-reply.Chunks
	require.True(t, ok)
	rest := drain(t, reply)
	return first, first + rest
}

func Test_Respond_Rejects_Unknown_Token(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, llm.NewMockProvider(mockReply))

	_, err := f.composer.Respond(context.Background(), "tok-unknown", nil)
	req.ErrorIs(err, apperrors.ErrInvalidToken)
}

func Test_Respond_Rejects_Completed_Participant(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, llm.NewMockProvider(mockReply))

	_, _, err := f.participants.SetCompleted("p-1", domain.ReasonManual, f.clock.Now())
	req.NoError(err)

	_, err = f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "user", Content: "am I still in?"},
	})
	req.ErrorIs(err, apperrors.ErrSessionCompleted)

	// Rejection must not create message rows.
	turns, err := f.turns.List("p-1")
	req.NoError(err)
	req.Empty(turns)
}

func Test_First_Turn_Captures_Name_And_Greets_On_Both_Branches(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, llm.NewMockProvider(mockReply))

	reply, err := f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "assistant", Content: "Before we start, what name should I use for you?"},
		{Role: "user", Content: "Maria\nI work in ops."},
	})
	req.NoError(err)

	first, delivered := firstChunk(t, reply)
	req.Equal("Nice to meet you, Maria. ", first)
	req.Equal("Nice to meet you, Maria. "+mockReply, delivered)

	p, err := f.participants.Get("p-1")
	req.NoError(err)
	req.Equal("Maria", p.DisplayName)
	req.Equal(domain.StatusStarted, p.Status)
	req.NotNil(p.StartedAt)

	turns, err := f.turns.List("p-1")
	req.NoError(err)
	req.Len(turns, 3)
	req.Equal(domain.RoleAssistant, turns[0].Role) // lazy opening question
	req.Equal("Before we start, what name should I use for you?", turns[0].Content)
	req.Equal(domain.RoleUser, turns[1].Role)
	req.Equal(domain.RoleAssistant, turns[2].Role)
	// Persisted text is byte-identical to the delivered stream.
	req.Equal(delivered, turns[2].Content)
	for i, turn := range turns {
		req.Equal(i+1, turn.Index)
	}
}

func Test_Greeting_Appears_Only_Once(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, llm.NewMockProvider(mockReply))

	reply, err := f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "user", Content: "Maria"},
	})
	req.NoError(err)
	drain(t, reply)

	reply, err = f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "user", Content: "Maria"},
		{Role: "assistant", Content: mockReply},
		{Role: "user", Content: "Mostly spreadsheets."},
	})
	req.NoError(err)
	delivered := drain(t, reply)
	req.Equal(mockReply, delivered)
	req.NotContains(delivered, "Nice to meet you")
}

func Test_Empty_User_Text_Is_Not_Recorded(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, llm.NewMockProvider(mockReply))

	reply, err := f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "user", Content: "   "},
	})
	req.NoError(err)
	drain(t, reply)

	turns, err := f.turns.List("p-1")
	req.NoError(err)
	req.Len(turns, 1) // only the assistant reply
	req.Equal(domain.RoleAssistant, turns[0].Role)
}

func Test_TimeBox_Boundary(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, llm.NewMockProvider(mockReply))

	// First message starts the clock.
	reply, err := f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "user", Content: "Maria"},
	})
	req.NoError(err)
	drain(t, reply)

	limit := time.Duration(f.script.LimitMinutes) * time.Minute

	// One millisecond before the limit: normal generation.
	f.clock.Advance(limit - time.Millisecond)
	reply, err = f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "user", Content: "still here"},
	})
	req.NoError(err)
	req.Equal(mockReply, drain(t, reply))

	// At the limit: synthetic close, completion with reason timeout.
	f.clock.Advance(time.Millisecond)
	reply, err = f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "user", Content: "one more thought"},
	})
	req.NoError(err)
	req.Equal(ClosingMessage, drain(t, reply))

	p, err := f.participants.Get("p-1")
	req.NoError(err)
	req.Equal(domain.StatusCompleted, p.Status)
	req.Equal(domain.ReasonTimeout, p.CompletedReason)

	completion, found, err := f.participants.GetCompletion("p-1")
	req.NoError(err)
	req.True(found)
	req.Equal(domain.ReasonTimeout, completion.Reason)

	// The synthetic close is persisted as the final assistant turn.
	turns, err := f.turns.List("p-1")
	req.NoError(err)
	req.Equal(ClosingMessage, turns[len(turns)-1].Content)
}

func Test_Fallback_When_Provider_Fails(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, failingProvider{})

	reply, err := f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "user", Content: "Maria"},
	})
	req.NoError(err)

	delivered := drain(t, reply)
	req.Equal("Nice to meet you, Maria. Which tools do you use every day?", delivered)

	turns, err := f.turns.List("p-1")
	req.NoError(err)
	req.Equal(delivered, turns[len(turns)-1].Content)
}

func Test_Fallback_When_Stream_Aborts_Empty(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, abortingProvider{})

	reply, err := f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "user", Content: "Maria"},
	})
	req.NoError(err)

	delivered := drain(t, reply)
	req.NotEmpty(delivered)
	req.Contains(delivered, "Which tools do you use every day?")
}

func Test_Client_Disconnect_Still_Persists_Full_Reply(t *testing.T) {
	req := require.New(t)

	chunks := []string{"part one, ", "part two, ", "part three."}
	provider := chunkedProvider{chunks: chunks}
	f := newFixture(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	reply, err := f.composer.Respond(ctx, "tok-1", []llm.Message{
		{Role: "user", Content: "Maria"},
	})
	req.NoError(err)

	// Simulate the client dropping before reading anything.
	cancel()

	select {
	case <-reply.Persisted:
	case <-time.After(2 * time.Second):
		t.Fatal("persistence did not complete after disconnect")
	}

	turns, err := f.turns.List("p-1")
	req.NoError(err)
	last := turns[len(turns)-1]
	req.Equal(domain.RoleAssistant, last.Role)
	req.Equal("Nice to meet you, Maria. "+strings.Join(chunks, ""), last.Content)
}

func Test_Natural_Finish_On_Closing_Marker(t *testing.T) {
	req := require.New(t)

	finalReply := "We covered your daily tools and your pain points. Thanks! [END-OF-INTERVIEW]"
	f := newFixture(t, llm.NewMockProvider(finalReply))

	reply, err := f.composer.Respond(context.Background(), "tok-1", []llm.Message{
		{Role: "user", Content: "Maria"},
	})
	req.NoError(err)
	drain(t, reply)

	p, err := f.participants.Get("p-1")
	req.NoError(err)
	req.Equal(domain.StatusCompleted, p.Status)
	req.Equal(domain.ReasonFinished, p.CompletedReason)
}

// chunkedProvider yields a fixed sequence of chunks.
type chunkedProvider struct {
	chunks []string
}

func (p chunkedProvider) Stream(context.Context, string, []llm.Message) (<-chan string, error) {
	ch := make(chan string, len(p.chunks))
	for _, c := range p.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}
