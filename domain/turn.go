// Package domain contains core concepts of the interview engine.
// This file defines conversation turns. Turns are immutable and append-only.
package domain

import "time"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one immutable message of a participant's transcript.
// Indices are 1-based, strictly increasing and gap-free per participant.
type Turn struct {
	ParticipantID string
	Index         int
	Role          Role
	Content       string
	Lang          string
	CreatedAt     time.Time
}
