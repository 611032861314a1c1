package interview

import (
	"interview-lab/domain"
	apperrors "interview-lab/errors"
	"interview-lab/repositories"
)

// Gate resolves opaque invite tokens to participants and blocks terminal
// ones. It has no side effects.
type Gate struct {
	participants repositories.IParticipantRepository
}

func NewGate(participants repositories.IParticipantRepository) Gate {
	return Gate{participants: participants}
}

// Resolve returns the participant owning the token. Unknown tokens fail
// with ErrInvalidToken; completed participants with ErrSessionCompleted,
// and callers must not append further turns for them.
func (g Gate) Resolve(token string) (domain.Participant, error) {
	p, err := g.participants.GetByToken(token)
	if err != nil {
		return domain.Participant{}, err
	}
	if p.Completed() {
		return domain.Participant{}, apperrors.ErrSessionCompleted
	}
	return p, nil
}
