// Package store is the client-side local queue: a durable, restartable FIFO
// of mutations recorded while offline. Records only leave the store once the
// server has confirmed it accepted the corresponding mutation into its own
// queue.
package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/beeker1121/goque"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
	"go.uber.org/zap"
)

// Record is one locally queued mutation.
type Record struct {
	LocalID    string          `json:"localId"`
	Action     shared.Action   `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   *string         `json:"entityId,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

type Store struct {
	q *goque.Queue
}

// Open opens (or creates) the durable queue at path. The same path must be
// reused across restarts, that is what makes the queue survive a crash.
func Open(path string) (*Store, error) {
	q, err := goque.OpenQueue(path)
	if err != nil {
		zap.S().Errorf("Error opening queue: %v", err)
		return nil, err
	}
	return &Store{q: q}, nil
}

func (s *Store) Close() error {
	err := s.q.Close()
	if err != nil {
		zap.S().Errorf("Error closing queue: %v", err)
	}
	return err
}

func (s *Store) Length() uint64 {
	return s.q.Length()
}

// Enqueue validates and appends one mutation, returning its local id. It
// never touches the network; that is the whole point of queueing locally.
func (s *Store) Enqueue(action shared.Action, entityType string, entityID *string, payload []byte) (string, error) {
	if action != shared.ActionCreate && (entityID == nil || *entityID == "") {
		return "", errors.New(string(action) + " requires an entityId")
	}
	if err := shared.ValidatePayload(entityType, action, payload); err != nil {
		return "", err
	}

	rec := Record{
		LocalID:    uuid.New().String(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
	bytes, err := gojson.Marshal(rec)
	if err != nil {
		return "", err
	}
	if _, err = s.q.Enqueue(bytes); err != nil {
		return "", err
	}
	return rec.LocalID, nil
}

// ListPending returns up to limit records in FIFO order without consuming
// them. limit <= 0 means all.
func (s *Store) ListPending(limit int) ([]Record, error) {
	var records []Record
	for i := uint64(0); ; i++ {
		if limit > 0 && len(records) >= limit {
			break
		}
		item, err := s.q.PeekByOffset(i)
		if err != nil {
			if errors.Is(err, goque.ErrEmpty) || errors.Is(err, goque.ErrOutOfBounds) {
				break
			}
			return nil, err
		}
		var rec Record
		if err = gojson.Unmarshal(item.Value, &rec); err != nil {
			zap.S().Warnf("Skipping undecodable local record at offset %d: %v", i, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Remove drops a single record after its mutation was confirmed.
func (s *Store) Remove(localID string) error {
	_, err := s.RemoveConfirmed(map[string]bool{localID: true})
	return err
}

// RemoveConfirmed drops the records whose local ids the server confirmed.
// goque only dequeues from the front, so the queue is rewritten once:
// every record is dequeued and the unconfirmed ones re-enqueued in order.
func (s *Store) RemoveConfirmed(confirmed map[string]bool) (int, error) {
	if len(confirmed) == 0 {
		return 0, nil
	}
	n := s.q.Length()
	removed := 0
	for i := uint64(0); i < n; i++ {
		item, err := s.q.Dequeue()
		if err != nil {
			if errors.Is(err, goque.ErrEmpty) {
				break
			}
			return removed, err
		}
		var rec Record
		if err = gojson.Unmarshal(item.Value, &rec); err != nil {
			zap.S().Warnf("Dropping undecodable local record: %v", err)
			continue
		}
		if confirmed[rec.LocalID] {
			removed++
			continue
		}
		if _, err = s.q.Enqueue(item.Value); err != nil {
			return removed, err
		}
	}
	return removed, nil
}
