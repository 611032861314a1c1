//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"interview-lab/domain"
	apperrors "interview-lab/errors"

	"github.com/dgraph-io/badger/v4"
)

type IParticipantRepository interface {
	Create(p domain.Participant) error
	Get(id string) (domain.Participant, error)
	GetByToken(token string) (domain.Participant, error)
	SetStarted(id string, at time.Time) (domain.Participant, error)
	SetName(id, name string) error
	SetCompleted(id string, reason domain.CompletionReason, at time.Time) (domain.Participant, bool, error)
	GetCompletion(id string) (domain.Completion, bool, error)
}

type ParticipantRepository struct {
	db *badger.DB
}

func NewParticipantRepository(db *badger.DB) IParticipantRepository {
	return &ParticipantRepository{db: db}
}

// participantRow is the stored representation of a participant.
type participantRow struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"session_id"`
	Token           string     `json:"token"`
	Status          string     `json:"status"`
	DisplayName     string     `json:"display_name,omitempty"`
	InvitedAt       time.Time  `json:"invited_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CompletedReason string     `json:"completed_reason,omitempty"`
}

type completionRow struct {
	ParticipantID string    `json:"participant_id"`
	Reason        string    `json:"reason"`
	At            time.Time `json:"at"`
}

func participantKey(id string) []byte { return []byte("participant:" + id) }

func tokenKey(token string) []byte { return []byte("ptoken:" + token) }

func completionKey(id string) []byte { return []byte("completion:" + id) }

// Create persists a new invited participant together with its token index.
// The token must be unique; a colliding token fails the whole write.
func (r ParticipantRepository) Create(p domain.Participant) error {
	data, err := json.Marshal(fromParticipant(p))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(tokenKey(p.Token)); err == nil {
			return apperrors.ErrParticipantExists
		}
		if _, err := txn.Get(participantKey(p.ID)); err == nil {
			return apperrors.ErrParticipantExists
		}
		if err := txn.Set(tokenKey(p.Token), []byte(p.ID)); err != nil {
			return err
		}
		return txn.Set(participantKey(p.ID), data)
	})
}

func (r ParticipantRepository) Get(id string) (domain.Participant, error) {
	var row participantRow
	err := r.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, participantKey(id), &row)
	})
	if err != nil {
		return domain.Participant{}, apperrors.ErrInvalidToken
	}
	return toParticipant(row), nil
}

// GetByToken resolves the opaque invite token through the token index.
func (r ParticipantRepository) GetByToken(token string) (domain.Participant, error) {
	var row participantRow
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tokenKey(token))
		if err != nil {
			return err
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return readJSON(txn, participantKey(id), &row)
	})
	if err != nil {
		return domain.Participant{}, apperrors.ErrInvalidToken
	}
	return toParticipant(row), nil
}

// SetStarted records the lazy started transition. Idempotent: a participant
// that already has a start timestamp is returned unchanged.
func (r ParticipantRepository) SetStarted(id string, at time.Time) (domain.Participant, error) {
	var row participantRow
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := readJSON(txn, participantKey(id), &row); err != nil {
			return err
		}
		if row.StartedAt != nil {
			return nil
		}
		row.StartedAt = &at
		row.Status = string(domain.StatusStarted)
		return writeJSON(txn, participantKey(id), row)
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return toParticipant(row), nil
}

func (r ParticipantRepository) SetName(id, name string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var row participantRow
		if err := readJSON(txn, participantKey(id), &row); err != nil {
			return err
		}
		row.DisplayName = name
		return writeJSON(txn, participantKey(id), row)
	})
}

// SetCompleted drives the single transition into the terminal state and
// writes the completion record in the same transaction. A second call is a
// no-op that returns the existing terminal participant; the returned bool
// reports whether this call performed the transition.
func (r ParticipantRepository) SetCompleted(id string, reason domain.CompletionReason, at time.Time) (domain.Participant, bool, error) {
	var row participantRow
	transitioned := false
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := readJSON(txn, participantKey(id), &row); err != nil {
			return err
		}
		if row.Status == string(domain.StatusCompleted) {
			return nil
		}
		row.Status = string(domain.StatusCompleted)
		row.CompletedAt = &at
		row.CompletedReason = string(reason)
		if err := writeJSON(txn, participantKey(id), row); err != nil {
			return err
		}
		completion := completionRow{ParticipantID: id, Reason: string(reason), At: at}
		if err := writeJSON(txn, completionKey(id), completion); err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return domain.Participant{}, false, err
	}
	return toParticipant(row), transitioned, nil
}

func (r ParticipantRepository) GetCompletion(id string) (domain.Completion, bool, error) {
	var row completionRow
	err := r.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, completionKey(id), &row)
	})
	if err == badger.ErrKeyNotFound {
		return domain.Completion{}, false, nil
	}
	if err != nil {
		return domain.Completion{}, false, err
	}
	return domain.Completion{
		ParticipantID: row.ParticipantID,
		Reason:        domain.CompletionReason(row.Reason),
		At:            row.At,
	}, true, nil
}

func readJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func writeJSON(txn *badger.Txn, key []byte, src any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

func fromParticipant(p domain.Participant) participantRow {
	return participantRow{
		ID:              p.ID,
		SessionID:       p.SessionID,
		Token:           p.Token,
		Status:          string(p.Status),
		DisplayName:     p.DisplayName,
		InvitedAt:       p.InvitedAt,
		StartedAt:       p.StartedAt,
		CompletedAt:     p.CompletedAt,
		CompletedReason: string(p.CompletedReason),
	}
}

func toParticipant(row participantRow) domain.Participant {
	return domain.Participant{
		ID:              row.ID,
		SessionID:       row.SessionID,
		Token:           row.Token,
		Status:          domain.Status(row.Status),
		DisplayName:     row.DisplayName,
		InvitedAt:       row.InvitedAt,
		StartedAt:       row.StartedAt,
		CompletedAt:     row.CompletedAt,
		CompletedReason: domain.CompletionReason(row.CompletedReason),
	}
}
