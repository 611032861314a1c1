package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"interview-lab/domain"
	"interview-lab/domain/script"
	"interview-lab/repositories"

	"github.com/google/uuid"
)

// inviteTokenBytes sizes the random invite token before encoding.
const inviteTokenBytes = 32

type IInviteService interface {
	Invite(sessionID string) (domain.Participant, error)
}

// InviteService issues invite tokens binding a new participant to a session
// script. Tokens are opaque and carry no embedded claims.
type InviteService struct {
	participants repositories.IParticipantRepository
	scripts      script.Source
	log          *slog.Logger
}

func NewInviteService(participants repositories.IParticipantRepository, scripts script.Source, log *slog.Logger) IInviteService {
	return &InviteService{participants: participants, scripts: scripts, log: log}
}

// Invite creates an invited participant for the session and returns it with
// the freshly minted token.
func (s *InviteService) Invite(sessionID string) (domain.Participant, error) {
	if _, err := s.scripts.Get(sessionID); err != nil {
		return domain.Participant{}, err
	}

	token, err := newInviteToken()
	if err != nil {
		return domain.Participant{}, err
	}

	p := domain.Participant{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Token:     token,
		Status:    domain.StatusInvited,
		InvitedAt: time.Now().UTC(),
	}
	if err := s.participants.Create(p); err != nil {
		return domain.Participant{}, err
	}

	s.log.Info("Participant invited", "participant", p.ID, "session", sessionID)
	return p, nil
}

func newInviteToken() (string, error) {
	raw := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("token entropy unavailable: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
