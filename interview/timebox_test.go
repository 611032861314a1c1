package interview

import (
	"testing"
	"time"

	"interview-lab/domain"

	"github.com/stretchr/testify/require"
)

func Test_TimeBox_Exceeded(t *testing.T) {
	req := require.New(t)

	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	limit := 30 * time.Minute

	cases := []struct {
		name      string
		startedAt *time.Time
		now       time.Time
		exceeded  bool
	}{
		{name: "never started", startedAt: nil, now: start.Add(time.Hour), exceeded: false},
		{name: "well within", startedAt: &start, now: start.Add(10 * time.Minute), exceeded: false},
		{name: "one ms before", startedAt: &start, now: start.Add(limit - time.Millisecond), exceeded: false},
		{name: "exact boundary", startedAt: &start, now: start.Add(limit), exceeded: true},
		{name: "past limit", startedAt: &start, now: start.Add(limit + time.Minute), exceeded: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			guard := NewTimeBoxGuard().WithClock(func() time.Time { return tc.now })
			p := domain.Participant{ID: "p-1", StartedAt: tc.startedAt}
			req.Equal(tc.exceeded, guard.Exceeded(p, limit))
		})
	}
}
