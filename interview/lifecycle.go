package interview

import (
	"log/slog"
	"time"

	"interview-lab/contract"
	"interview-lab/domain"
	"interview-lab/domain/event"
	"interview-lab/repositories"
)

// Lifecycle drives participant state transitions. Both transitions are
// idempotent: EnsureStarted only sets the start timestamp once, and
// Complete turns a second attempt into a no-op returning the existing
// terminal state.
type Lifecycle struct {
	participants repositories.IParticipantRepository
	events       contract.Publisher
	log          *slog.Logger
	clock        func() time.Time
}

func NewLifecycle(participants repositories.IParticipantRepository, events contract.Publisher, log *slog.Logger) Lifecycle {
	return Lifecycle{
		participants: participants,
		events:       events,
		log:          log,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Test seam.
func (l Lifecycle) WithClock(clock func() time.Time) Lifecycle {
	l.clock = clock
	return l
}

// EnsureStarted lazily records the invited -> started transition on the
// first accepted inbound message.
func (l Lifecycle) EnsureStarted(p domain.Participant) (domain.Participant, error) {
	if p.StartedAt != nil {
		return p, nil
	}
	started, err := l.participants.SetStarted(p.ID, l.clock())
	if err != nil {
		return domain.Participant{}, err
	}
	l.log.Info("Participant started", "participant", p.ID, "session", p.SessionID)
	return started, nil
}

// Complete performs the single transition into the terminal state and emits
// the completion event exactly once. Completing an already-completed
// participant returns its existing terminal state without error.
func (l Lifecycle) Complete(p domain.Participant, reason domain.CompletionReason) (domain.Participant, error) {
	now := l.clock()
	completed, transitioned, err := l.participants.SetCompleted(p.ID, reason, now)
	if err != nil {
		return domain.Participant{}, err
	}
	if transitioned {
		l.log.Info("Participant completed", "participant", p.ID, "reason", reason)
		l.events.Publish(event.ParticipantCompleted{
			ParticipantID: p.ID,
			Reason:        reason,
			At:            now,
		})
	}
	return completed, nil
}
