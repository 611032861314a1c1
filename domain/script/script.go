// Package script holds the interview script configuration consumed by the
// engine: the base system prompt, the ordered checklist of questions and
// the session time box. The script is read-only from the engine's point of
// view; authoring and versioning happen elsewhere.
package script

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	apperrors "interview-lab/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Question is one checklist item the interviewer must cover.
type Question struct {
	Topic  string `json:"topic" validate:"required"`
	Prompt string `json:"prompt" validate:"required"`
}

// Script is the full configuration of one interview session.
type Script struct {
	SessionID     string     `json:"session_id" validate:"required"`
	BasePrompt    string     `json:"base_prompt" validate:"required"`
	Questions     []Question `json:"questions" validate:"min=1,dive"`
	LimitMinutes  int        `json:"limit_minutes" validate:"min=1"`
	Model         string     `json:"model" validate:"required"`
	ClosingMarker string     `json:"closing_marker"`
}

// Load reads and validates a script file.
func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("%w: %v", apperrors.ErrScriptNotFound, err)
	}
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("%w: %v", apperrors.ErrScriptInvalid, err)
	}
	if err := s.Validate(); err != nil {
		return Script{}, err
	}
	return s, nil
}

// Validate applies the structural rules every script must satisfy.
func (s Script) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrScriptInvalid, err)
	}
	return nil
}

// NextUnanswered returns the first checklist question whose topic has not
// yet been raised in any assistant turn. Used as the deterministic fallback
// when generation fails. The boolean is false once every topic was covered.
func (s Script) NextUnanswered(assistantTurns []string) (Question, bool) {
	for _, q := range s.Questions {
		covered := false
		for _, turn := range assistantTurns {
			if containsFold(turn, q.Topic) {
				covered = true
				break
			}
		}
		if !covered {
			return q, true
		}
	}
	return Question{}, false
}

// Source resolves a session id to its script. The engine consults it per
// request so misconfiguration surfaces as an explicit error, not a panic.
type Source interface {
	Get(sessionID string) (Script, error)
}

// StaticSource serves a fixed set of scripts loaded at boot.
type StaticSource map[string]Script

func (s StaticSource) Get(sessionID string) (Script, error) {
	sc, ok := s[sessionID]
	if !ok {
		return Script{}, apperrors.ErrScriptNotFound
	}
	return sc, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
