package services

import (
	"context"
	"errors"
	"log/slog"

	"interview-lab/domain"
	apperrors "interview-lab/errors"
	"interview-lab/interview"
	"interview-lab/llm"
	"interview-lab/repositories"
)

type IInterviewService interface {
	Message(ctx context.Context, token string, history []llm.Message) (*interview.Reply, error)
	Complete(token string) (domain.Participant, error)
	Transcript(participantID string) ([]domain.Turn, error)
}

// InterviewService is the application-facing surface over the composer and
// the stored transcript.
type InterviewService struct {
	composer     *interview.Composer
	lifecycle    interview.Lifecycle
	participants repositories.IParticipantRepository
	turns        repositories.ITurnRepository
	log          *slog.Logger
}

func NewInterviewService(
	composer *interview.Composer,
	lifecycle interview.Lifecycle,
	participants repositories.IParticipantRepository,
	turns repositories.ITurnRepository,
	log *slog.Logger,
) IInterviewService {
	return &InterviewService{
		composer:     composer,
		lifecycle:    lifecycle,
		participants: participants,
		turns:        turns,
		log:          log,
	}
}

// Message runs one conversational round-trip for the token's participant.
func (s *InterviewService) Message(ctx context.Context, token string, history []llm.Message) (*interview.Reply, error) {
	return s.composer.Respond(ctx, token, history)
}

// Complete ends the interview at the participant's request. Idempotent: a
// participant already in the terminal state is acknowledged again with its
// existing completion, whatever the original reason was.
func (s *InterviewService) Complete(token string) (domain.Participant, error) {
	p, err := s.participants.GetByToken(token)
	if err != nil {
		return domain.Participant{}, err
	}
	if p.Completed() {
		return p, nil
	}
	return s.lifecycle.Complete(p, domain.ReasonManual)
}

// Transcript returns the ordered persisted turns for one participant.
func (s *InterviewService) Transcript(participantID string) ([]domain.Turn, error) {
	if _, err := s.participants.Get(participantID); err != nil {
		if errors.Is(err, apperrors.ErrInvalidToken) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}
	return s.turns.List(participantID)
}
