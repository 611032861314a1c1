//go:generate go run go.uber.org/mock/mockgen -source=operator.go -destination=../mocks/mock_operator_repository.go -package=mocks
package repositories

import (
	"time"

	apperrors "interview-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IOperatorRepository interface {
	CreateOperator(email, hashedPassword string) (string, error)
	GetOperatorByEmail(email string) (Operator, error)
}

type OperatorRepository struct {
	db *badger.DB
}

func NewOperatorRepository(db *badger.DB) IOperatorRepository {
	return &OperatorRepository{db: db}
}

// Operator is an ops-side account allowed to issue invites and read
// transcripts. Participants never have one.
type Operator struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

func operatorKey(email string) []byte { return []byte("operator:" + email) }

// CreateOperator persists a new operator account and returns its generated ID.
func (r OperatorRepository) CreateOperator(email, hashedPassword string) (string, error) {
	operator := Operator{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"operator"},
		CreatedAt:    time.Now().UTC(),
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(operatorKey(email)); err == nil {
			return apperrors.ErrOperatorExists
		}
		return writeJSON(txn, operatorKey(email), operator)
	})
	if err != nil {
		return "", err
	}
	return operator.ID, nil
}

func (r OperatorRepository) GetOperatorByEmail(email string) (Operator, error) {
	var operator Operator
	err := r.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, operatorKey(email), &operator)
	})
	if err != nil {
		return Operator{}, err
	}
	return operator, nil
}
