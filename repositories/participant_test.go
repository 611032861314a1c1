package repositories

import (
	"testing"
	"time"

	"interview-lab/domain"
	apperrors "interview-lab/errors"

	"github.com/stretchr/testify/require"
)

func invited(id, token string) domain.Participant {
	return domain.Participant{
		ID:        id,
		SessionID: "sess-1",
		Token:     token,
		Status:    domain.StatusInvited,
		InvitedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func Test_Create_And_Resolve_By_Token(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t))

	p := invited("p-1", "tok-abc")
	req.NoError(repository.Create(p))

	fetched, err := repository.GetByToken("tok-abc")
	req.NoError(err)
	req.Equal(p.ID, fetched.ID)
	req.Equal(domain.StatusInvited, fetched.Status)

	_, err = repository.GetByToken("tok-unknown")
	req.ErrorIs(err, apperrors.ErrInvalidToken)
}

func Test_Create_Rejects_Duplicate_Token(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t))

	req.NoError(repository.Create(invited("p-1", "tok-dup")))
	err := repository.Create(invited("p-2", "tok-dup"))
	req.ErrorIs(err, apperrors.ErrParticipantExists)
}

func Test_SetStarted_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t))
	req.NoError(repository.Create(invited("p-1", "tok-1")))

	first := time.Now().UTC().Truncate(time.Second)
	p, err := repository.SetStarted("p-1", first)
	req.NoError(err)
	req.Equal(domain.StatusStarted, p.Status)
	req.NotNil(p.StartedAt)
	req.Equal(first, p.StartedAt.UTC())

	// A later call must not move the start timestamp.
	p, err = repository.SetStarted("p-1", first.Add(5*time.Minute))
	req.NoError(err)
	req.Equal(first, p.StartedAt.UTC())
}

func Test_SetCompleted_Writes_Exactly_One_Completion(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t))
	req.NoError(repository.Create(invited("p-1", "tok-1")))
	_, err := repository.SetStarted("p-1", time.Now().UTC())
	req.NoError(err)

	at := time.Now().UTC().Truncate(time.Second)
	p, transitioned, err := repository.SetCompleted("p-1", domain.ReasonManual, at)
	req.NoError(err)
	req.True(transitioned)
	req.Equal(domain.StatusCompleted, p.Status)
	req.Equal(domain.ReasonManual, p.CompletedReason)

	// Second completion attempt is a no-op.
	p, transitioned, err = repository.SetCompleted("p-1", domain.ReasonTimeout, at.Add(time.Minute))
	req.NoError(err)
	req.False(transitioned)
	req.Equal(domain.ReasonManual, p.CompletedReason)

	completion, found, err := repository.GetCompletion("p-1")
	req.NoError(err)
	req.True(found)
	req.Equal(domain.ReasonManual, completion.Reason)
	req.Equal(at, completion.At.UTC())
}

func Test_SetName(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t))
	req.NoError(repository.Create(invited("p-1", "tok-1")))

	req.NoError(repository.SetName("p-1", "Maria"))
	p, err := repository.Get("p-1")
	req.NoError(err)
	req.Equal("Maria", p.DisplayName)
}
