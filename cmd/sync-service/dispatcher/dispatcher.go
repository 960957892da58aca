package dispatcher

import (
	"fmt"
	"time"

	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
	"github.com/rural-care-hub/rural-care-hub/internal"
	"go.uber.org/zap"
)

// QueueStore is the durable queue the dispatcher drives. *postgresql.Connection
// implements it in production; tests use the in-memory mock.
type QueueStore interface {
	RecoverOrphanedItems(userID string, orphanTimeout time.Duration) ([]string, error)
	FailExhaustedItems(userID string, maxRetries int) (int64, error)
	MigrateLegacyItems(userID string) (int64, error)
	SelectCandidates(userID string, maxRetries int, batchSize int) ([]shared.QueueItem, error)
	ClaimItems(ids []string) ([]string, error)
	MarkItemSynced(id string) error
	MarkItemFailedAttempt(id string, maxRetries int, failure string) (shared.Status, error)
}

type Dispatcher struct {
	store         QueueStore
	registry      *Registry
	batchSize     int
	maxRetries    int
	orphanTimeout time.Duration
}

func New(store QueueStore, registry *Registry, batchSize int, maxRetries int, orphanTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		store:         store,
		registry:      registry,
		batchSize:     batchSize,
		maxRetries:    maxRetries,
		orphanTimeout: orphanTimeout,
	}
}

// Run processes one batch of the user's queue. Multiple invocations may run
// concurrently for the same user; correctness rests on the conditional claim
// update, not on any in-process locking. Only storage-level unavailability
// is returned as an error — individual item failures are recorded on the
// items themselves and never abort the batch.
func (d *Dispatcher) Run(userID string) (shared.SyncReport, error) {
	report := shared.SyncReport{Results: []shared.ItemResult{}}

	// Phase 0: recovery sweep. Idempotent, safe to run on every invocation.
	recovered, err := d.store.RecoverOrphanedItems(userID, d.orphanTimeout)
	if err != nil {
		return report, fmt.Errorf("orphan recovery failed: %w", err)
	}
	if len(recovered) > 0 {
		orphansRecovered.Add(float64(len(recovered)))
		zap.S().Infof("Recovered %d orphaned items for user %s", len(recovered), internal.SanitizeString(userID))
	}
	justRecovered := make(map[string]bool, len(recovered))
	for _, id := range recovered {
		justRecovered[id] = true
	}
	forceFailed, err := d.store.FailExhaustedItems(userID, d.maxRetries)
	if err != nil {
		return report, fmt.Errorf("force-failing exhausted items failed: %w", err)
	}
	if forceFailed > 0 {
		itemsFailedTerminal.Add(float64(forceFailed))
		zap.S().Warnf("Force-failed %d exhausted items for user %s", forceFailed, internal.SanitizeString(userID))
	}
	migrated, err := d.store.MigrateLegacyItems(userID)
	if err != nil {
		return report, fmt.Errorf("legacy status migration failed: %w", err)
	}
	if migrated > 0 {
		zap.S().Infof("Migrated %d legacy items to PENDING for user %s", migrated, internal.SanitizeString(userID))
	}

	// Phase 1: candidate selection.
	candidates, err := d.store.SelectCandidates(userID, d.maxRetries, d.batchSize)
	if err != nil {
		return report, fmt.Errorf("candidate selection failed: %w", err)
	}
	// Items recovered by this very invocation sit the pass out; they become
	// eligible again on the next one.
	n := 0
	for _, item := range candidates {
		if !justRecovered[item.ID] {
			candidates[n] = item
			n++
		}
	}
	candidates = candidates[:n]
	if len(candidates) == 0 {
		return report, nil
	}

	// Phase 2: atomic claim. A concurrent invocation may have grabbed some
	// candidates in between; those simply drop out of this batch.
	ids := make([]string, 0, len(candidates))
	for _, item := range candidates {
		ids = append(ids, item.ID)
	}
	claimedIDs, err := d.store.ClaimItems(ids)
	if err != nil {
		return report, fmt.Errorf("claim failed: %w", err)
	}
	itemsClaimed.Add(float64(len(claimedIDs)))
	claimed := make(map[string]bool, len(claimedIDs))
	for _, id := range claimedIDs {
		claimed[id] = true
	}

	// Phase 3: handler invocation, sequential over the claimed batch.
	for i := range candidates {
		item := &candidates[i]
		if !claimed[item.ID] {
			continue
		}
		result := d.processItem(item)
		report.Processed++
		if result.Success {
			report.Successful++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, result)
	}

	// Phase 4: aggregation happened along the way.
	return report, nil
}

func (d *Dispatcher) processItem(item *shared.QueueItem) shared.ItemResult {
	handler, ok := d.registry.Lookup(item.EntityType)
	if !ok {
		return d.recordFailure(item, fmt.Errorf("%w %q", ErrUnknownEntityType, item.EntityType))
	}
	if !item.Action.IsValid() {
		return d.recordFailure(item, fmt.Errorf("unknown operation %q", string(item.Action)))
	}

	result, err := handler.Apply(item.Action, item.EntityID, item.Payload, item.UserID)
	if err != nil {
		return d.recordFailure(item, err)
	}

	if err = d.store.MarkItemSynced(item.ID); err != nil {
		// The side effect is applied but the outcome write failed. The item
		// stays PROCESSING and the orphan sweep will hand it back to a later
		// pass, where the idempotent handler absorbs the re-apply.
		zap.S().Errorf("Failed to mark item %s synced: %v", item.ID, err)
		return shared.ItemResult{ID: item.ID, Success: false, Error: err.Error()}
	}
	itemsSynced.Inc()
	return shared.ItemResult{ID: item.ID, Success: true, Result: result}
}

func (d *Dispatcher) recordFailure(item *shared.QueueItem, cause error) shared.ItemResult {
	failedAttempts.Inc()
	zap.S().Warnf("Item %s (%s %s) failed: %v", item.ID, item.Action, internal.SanitizeString(item.EntityType), cause)

	status, err := d.store.MarkItemFailedAttempt(item.ID, d.maxRetries, cause.Error())
	if err != nil {
		zap.S().Errorf("Failed to record failure for item %s: %v", item.ID, err)
		return shared.ItemResult{ID: item.ID, Success: false, Error: cause.Error()}
	}
	if status == shared.StatusFailed {
		itemsFailedTerminal.Inc()
		zap.S().Warnf("Item %s reached terminal FAILED after %d retries", item.ID, d.maxRetries)
	}
	return shared.ItemResult{ID: item.ID, Success: false, Error: cause.Error()}
}
