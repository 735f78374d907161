package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"texttools/common"
)

// ErrNotFound is returned when no record exists for an index.
var ErrNotFound = errors.New("input not found")

// InputStatus tracks an input through the coordinator.
type InputStatus string

const (
	InputPending    InputStatus = "pending"
	InputProcessing InputStatus = "processing"
	InputAccepted   InputStatus = "accepted"
	InputRejected   InputStatus = "rejected"
)

// Finished reports whether the worker has returned a verdict.
func (s InputStatus) Finished() bool {
	return s == InputAccepted || s == InputRejected
}

// Output is one notice or report attached to an input. JSON holds the
// decoded payload when it is valid JSON.
type Output struct {
	Payload string          `json:"payload"`
	JSON    json.RawMessage `json:"json,omitempty"`
}

// InputRecord is everything the coordinator knows about one input.
type InputRecord struct {
	ID          string             `json:"id"`
	Index       int                `json:"index"`
	RequestType common.RequestType `json:"request_type"`
	Payload     string             `json:"payload"`
	Status      InputStatus        `json:"status"`
	Notices     []Output           `json:"notices"`
	Reports     []Output           `json:"reports"`
	CreatedAt   time.Time          `json:"created_at"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
}

// Store persists input records. Implementations must be safe for use by
// one coordinator; they are not shared between processes.
type Store interface {
	SaveInput(ctx context.Context, record *InputRecord) error
	LoadInput(ctx context.Context, index int) (*InputRecord, error)
	RestoreAllInputs(ctx context.Context) (map[int]*InputRecord, error)
	Close() error
}

// Open picks a backend: Redis when redisAddr is set, else SQLite when
// dbPath is set. With neither it returns a nil Store and the coordinator
// keeps records in memory only.
func Open(redisAddr, dbPath string, ttl time.Duration) (Store, error) {
	switch {
	case redisAddr != "":
		s, err := NewRedisStorage(redisAddr, ttl)
		if err != nil {
			return nil, err
		}
		return s, nil
	case dbPath != "":
		s, err := OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, nil
	}
}

func marshalRecord(record *InputRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input %d: %w", record.Index, err)
	}
	return data, nil
}

func unmarshalRecord(data []byte) (*InputRecord, error) {
	var record InputRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	return &record, nil
}
