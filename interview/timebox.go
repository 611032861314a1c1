package interview

import (
	"time"

	"interview-lab/domain"
)

// ClosingMessage is the fixed synthetic reply streamed when the time box
// has elapsed. It is persisted synchronously, never generated.
const ClosingMessage = "Thanks for your time. We've reached the interview limit and your responses are saved."

// TimeBoxGuard decides whether a participant's allotted duration has
// elapsed. The boundary counts as exceeded. A participant without a start
// timestamp is treated as freshly started, never as exceeded.
type TimeBoxGuard struct {
	clock func() time.Time
}

func NewTimeBoxGuard() TimeBoxGuard {
	return TimeBoxGuard{clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source. Test seam.
func (g TimeBoxGuard) WithClock(clock func() time.Time) TimeBoxGuard {
	g.clock = clock
	return g
}

func (g TimeBoxGuard) Exceeded(p domain.Participant, limit time.Duration) bool {
	if p.StartedAt == nil {
		return false
	}
	return g.clock().Sub(*p.StartedAt) >= limit
}
