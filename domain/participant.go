// Package domain contains core concepts of the interview engine.
// This file defines Participant entities and their lifecycle invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Status is the lifecycle state of a participant.
type Status string

const (
	StatusInvited   Status = "invited"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
)

// CompletionReason records why a participant reached the terminal state.
type CompletionReason string

const (
	// ReasonFinished marks a natural end of script.
	ReasonFinished CompletionReason = "finished"
	// ReasonTimeout marks a time-box expiry.
	ReasonTimeout CompletionReason = "timeout"
	// ReasonManual marks an explicit end-interview call.
	ReasonManual CompletionReason = "manual"
)

// Participant is one invited respondent of a session.
// The invite token is the sole credential for the participant's interview.
// Status transitions are driven exclusively by the lifecycle component:
// invited -> started on the first accepted message, started -> completed
// exactly once. Completed is terminal.
type Participant struct {
	ID              string
	SessionID       string
	Token           string
	Status          Status
	DisplayName     string
	InvitedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CompletedReason CompletionReason
}

// Completed reports whether the participant reached the terminal state.
func (p Participant) Completed() bool {
	return p.Status == StatusCompleted
}

// Completion is the single terminal record written when a participant
// completes. At most one exists per participant.
type Completion struct {
	ParticipantID string
	Reason        CompletionReason
	At            time.Time
}
