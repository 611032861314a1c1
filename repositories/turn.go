//go:generate go run go.uber.org/mock/mockgen -source=turn.go -destination=../mocks/mock_turn_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"interview-lab/domain"

	"github.com/abadojack/whatlanggo"
	"github.com/dgraph-io/badger/v4"
)

// appendRetries bounds the conflict-retry loop of Append. Conflicts only
// happen when two requests for the same participant race, so a small bound
// is plenty.
const appendRetries = 5

type ITurnRepository interface {
	Append(participantID string, role domain.Role, content string) (int, error)
	MaxIndex(participantID string) (int, error)
	List(participantID string) ([]domain.Turn, error)
}

// TurnRepository is the append-only per-participant turn ledger.
//
// The key is formatted as "turn:{participant_id}:{index_padded}" so a prefix
// scan yields the transcript in order. A companion "turnmax:{participant_id}"
// counter is read and bumped inside the same transaction as the row write:
// Badger aborts one of two transactions that read the same counter
// concurrently, which keeps indices contiguous and gap-free even under
// racing duplicate requests.
type TurnRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewTurnRepository(db *badger.DB, log *slog.Logger) TurnRepository {
	return TurnRepository{db: db, log: log}
}

type turnRow struct {
	ParticipantID string    `json:"participant_id"`
	Index         int       `json:"index"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	Lang          string    `json:"lang,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func turnKey(participantID string, index int) []byte {
	return []byte(fmt.Sprintf("turn:%s:%06d", participantID, index))
}

func turnMaxKey(participantID string) []byte {
	return []byte("turnmax:" + participantID)
}

// Append assigns the next turn index and writes the row atomically.
// It returns the assigned 1-based index.
func (r TurnRepository) Append(participantID string, role domain.Role, content string) (int, error) {
	var index int
	for attempt := 0; ; attempt++ {
		err := r.db.Update(func(txn *badger.Txn) error {
			max, err := readCounter(txn, turnMaxKey(participantID))
			if err != nil {
				return err
			}
			index = max + 1
			row := turnRow{
				ParticipantID: participantID,
				Index:         index,
				Role:          string(role),
				Content:       content,
				Lang:          detectLang(content),
				CreatedAt:     time.Now().UTC(),
			}
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("marshal failed: %w", err)
			}
			if err := txn.Set(turnKey(participantID, index), data); err != nil {
				return err
			}
			return txn.Set(turnMaxKey(participantID), []byte(strconv.Itoa(index)))
		})
		if err == nil {
			return index, nil
		}
		if !errors.Is(err, badger.ErrConflict) || attempt >= appendRetries {
			return 0, err
		}
		r.log.Debug("Turn append conflict, retrying", "participant", participantID, "attempt", attempt)
	}
}

// MaxIndex returns the highest persisted index, 0 when no turn exists.
func (r TurnRepository) MaxIndex(participantID string) (int, error) {
	var max int
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		max, err = readCounter(txn, turnMaxKey(participantID))
		return err
	})
	return max, err
}

// List retrieves the full transcript in turn order via a prefix scan.
func (r TurnRepository) List(participantID string) ([]domain.Turn, error) {
	var turns []domain.Turn
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("turn:" + participantID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row turnRow
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &row)
			})
			if err != nil {
				return err
			}
			turns = append(turns, toTurn(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return turns, nil
}

func readCounter(txn *badger.Txn, key []byte) (int, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var value int
	err = item.Value(func(val []byte) error {
		value, err = strconv.Atoi(string(val))
		return err
	})
	return value, err
}

// detectLang tags the stored row with the detected ISO 639-3 code.
// Short or ambiguous content is stored untagged.
func detectLang(content string) string {
	if len(content) < 10 {
		return ""
	}
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}

func toTurn(row turnRow) domain.Turn {
	return domain.Turn{
		ParticipantID: row.ParticipantID,
		Index:         row.Index,
		Role:          domain.Role(row.Role),
		Content:       row.Content,
		Lang:          row.Lang,
		CreatedAt:     row.CreatedAt,
	}
}
