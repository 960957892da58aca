package dispatcher

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

// MockQueueStore is an in-memory QueueStore with the same transition
// semantics as the postgres implementation, including the atomic
// PENDING->PROCESSING claim. Dispatcher tests run concurrent invocations
// against it to exercise the claim contention paths.
type MockQueueStore struct {
	mu            sync.Mutex
	items         map[string]*shared.QueueItem
	markSyncedErr error
}

func GetMockQueueStore(t *testing.T) *MockQueueStore {
	// Passing t here to ensure it is not used in production code
	t.Logf("Using mock queue store")
	return &MockQueueStore{items: make(map[string]*shared.QueueItem)}
}

// Put inserts or replaces an item directly, bypassing any transition rules.
func (m *MockQueueStore) Put(item shared.QueueItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := item
	m.items[item.ID] = &cp
}

// Get returns a copy of the item, or false if absent.
func (m *MockQueueStore) Get(id string) (shared.QueueItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return shared.QueueItem{}, false
	}
	return *item, true
}

func (m *MockQueueStore) RecoverOrphanedItems(userID string, orphanTimeout time.Duration) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-orphanTimeout)
	var recovered []string
	for _, item := range m.items {
		if item.UserID == userID && item.Status == shared.StatusProcessing && item.UpdatedAt.Before(cutoff) {
			item.Status = shared.StatusPending
			item.UpdatedAt = time.Now()
			recovered = append(recovered, item.ID)
		}
	}
	return recovered, nil
}

func (m *MockQueueStore) FailExhaustedItems(userID string, maxRetries int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.items {
		if item.UserID == userID && item.Status == shared.StatusPending && item.RetryCount >= maxRetries {
			item.Status = shared.StatusFailed
			item.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *MockQueueStore) MigrateLegacyItems(userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.items {
		if item.UserID == userID && item.Status == "" {
			item.Status = shared.StatusPending
			item.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *MockQueueStore) SelectCandidates(userID string, maxRetries int, batchSize int) ([]shared.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var candidates []shared.QueueItem
	for _, item := range m.items {
		if item.UserID == userID && item.Status == shared.StatusPending && item.RetryCount < maxRetries {
			candidates = append(candidates, *item)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RetryCount != candidates[j].RetryCount {
			return candidates[i].RetryCount < candidates[j].RetryCount
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	if len(candidates) > batchSize {
		candidates = candidates[:batchSize]
	}
	return candidates, nil
}

func (m *MockQueueStore) ClaimItems(ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claimed []string
	for _, id := range ids {
		item, ok := m.items[id]
		if ok && item.Status == shared.StatusPending {
			item.Status = shared.StatusProcessing
			item.UpdatedAt = time.Now()
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

// FailMarkSynced makes every subsequent MarkItemSynced call return err.
func (m *MockQueueStore) FailMarkSynced(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markSyncedErr = err
}

func (m *MockQueueStore) MarkItemSynced(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markSyncedErr != nil {
		return m.markSyncedErr
	}
	item, ok := m.items[id]
	if !ok {
		return nil
	}
	now := time.Now()
	item.Status = shared.StatusSynced
	item.Synced = true
	item.Error = nil
	item.SyncedAt = &now
	item.UpdatedAt = now
	return nil
}

func (m *MockQueueStore) MarkItemFailedAttempt(id string, maxRetries int, failure string) (shared.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return "", nil
	}
	item.RetryCount++
	item.Error = &failure
	if item.RetryCount >= maxRetries {
		item.Status = shared.StatusFailed
	} else {
		item.Status = shared.StatusPending
	}
	item.UpdatedAt = time.Now()
	return item.Status, nil
}
