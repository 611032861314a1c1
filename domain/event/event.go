// Package event defines domain events observed by in-process sinks.
// Events are best-effort notifications, never part of the request contract.
package event

import (
	"interview-lab/domain"
	"time"
)

type DomainEvent interface {
	OccurredAt() time.Time
}

// TurnRecorded is emitted after a turn is durably appended to the ledger.
type TurnRecorded struct {
	Turn domain.Turn
	At   time.Time
}

func (e TurnRecorded) OccurredAt() time.Time { return e.At }

// ParticipantCompleted is emitted on the single transition into the
// terminal state.
type ParticipantCompleted struct {
	ParticipantID string
	Reason        domain.CompletionReason
	At            time.Time
}

func (e ParticipantCompleted) OccurredAt() time.Time { return e.At }

// GenerationFailed is emitted when the provider call fails and the
// fallback reply is served instead.
type GenerationFailed struct {
	ParticipantID string
	Err           string
	At            time.Time
}

func (e GenerationFailed) OccurredAt() time.Time { return e.At }

// PersistenceFailed is emitted when the background transcript append
// fails after delivery already succeeded.
type PersistenceFailed struct {
	ParticipantID string
	Err           string
	At            time.Time
}

func (e PersistenceFailed) OccurredAt() time.Time { return e.At }
