package postgresql

import (
	"time"

	"github.com/google/uuid"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
	"go.uber.org/zap"
)

const statusCacheTTL = 5 * time.Second

// EnqueueItem persists one queued mutation for the given user and returns the
// assigned id. New items always start out PENDING with zero retries.
func (c *Connection) EnqueueItem(userID string, action shared.Action, entityType string, entityID *string, payload []byte) (string, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	id := uuid.New().String()
	_, err := c.Db.Exec(ctx, `
		INSERT INTO sync_queue_item
			(id, user_id, action, entity_type, entity_id, payload, status, synced, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', false, 0, now(), now())
	`, id, userID, string(action), entityType, entityID, payload)
	if err != nil {
		zap.S().Warnf("Error enqueueing %s %s for user %s: %v", action, entityType, userID, err)
		return "", err
	}
	return id, nil
}

// RecoverOrphanedItems resets PROCESSING items whose claim is older than the
// orphan timeout back to PENDING and returns their ids. A dispatcher that
// crashed mid-batch must not hold items forever; this sweep is the sole
// liveness mechanism. The caller excludes the returned ids from its own
// batch: a recovered item is only eligible again on the next invocation.
func (c *Connection) RecoverOrphanedItems(userID string, orphanTimeout time.Duration) ([]string, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	cutoff := time.Now().Add(-orphanTimeout)
	rows, err := c.Db.Query(ctx, `
		UPDATE sync_queue_item
		SET status = 'PENDING', updated_at = now()
		WHERE user_id = $1
		  AND status = 'PROCESSING'
		  AND updated_at < $2
		RETURNING id
	`, userID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recovered []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		recovered = append(recovered, id)
	}
	return recovered, rows.Err()
}

// FailExhaustedItems force-fails PENDING items that already spent their whole
// retry budget. Steady-state this matches nothing; it catches items whose
// dispatcher died between the retry increment and the status write.
func (c *Connection) FailExhaustedItems(userID string, maxRetries int) (int64, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	cmdTag, err := c.Db.Exec(ctx, `
		UPDATE sync_queue_item
		SET status = 'FAILED', updated_at = now()
		WHERE user_id = $1
		  AND status = 'PENDING'
		  AND retry_count >= $2
	`, userID, maxRetries)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// MigrateLegacyItems moves rows written before the status column existed to
// PENDING. Schema-evolution compatibility, not a steady-state path.
func (c *Connection) MigrateLegacyItems(userID string) (int64, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	cmdTag, err := c.Db.Exec(ctx, `
		UPDATE sync_queue_item
		SET status = 'PENDING', updated_at = now()
		WHERE user_id = $1
		  AND (status IS NULL OR status = '')
	`, userID)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// SelectCandidates returns up to batchSize PENDING items with retry budget
// left, least-retried and oldest first so a poison item cannot starve the
// rest of the queue.
func (c *Connection) SelectCandidates(userID string, maxRetries int, batchSize int) ([]shared.QueueItem, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	rows, err := c.Db.Query(ctx, `
		SELECT id, user_id, action, entity_type, entity_id, payload, status, synced, retry_count, error, created_at, updated_at, synced_at
		FROM sync_queue_item
		WHERE user_id = $1
		  AND status = 'PENDING'
		  AND retry_count < $2
		ORDER BY retry_count ASC, created_at ASC
		LIMIT $3
	`, userID, maxRetries, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []shared.QueueItem
	for rows.Next() {
		var item shared.QueueItem
		err = rows.Scan(
			&item.ID, &item.UserID, &item.Action, &item.EntityType, &item.EntityID,
			&item.Payload, &item.Status, &item.Synced, &item.RetryCount, &item.Error,
			&item.CreatedAt, &item.UpdatedAt, &item.SyncedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ClaimItems flips the given items from PENDING to PROCESSING in a single
// conditional update and returns the ids that actually transitioned. Items a
// concurrent dispatcher claimed first stay untouched and are simply absent
// from the returned set.
func (c *Connection) ClaimItems(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cncl := get1MinuteContext()
	defer cncl()

	rows, err := c.Db.Query(ctx, `
		UPDATE sync_queue_item
		SET status = 'PROCESSING', updated_at = now()
		WHERE id = ANY($1)
		  AND status = 'PENDING'
		RETURNING id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		claimed = append(claimed, id)
	}
	return claimed, rows.Err()
}

// MarkItemSynced records a successful apply. SYNCED is terminal.
func (c *Connection) MarkItemSynced(id string) error {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	_, err := c.Db.Exec(ctx, `
		UPDATE sync_queue_item
		SET status = 'SYNCED', synced = true, error = NULL, synced_at = now(), updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// MarkItemFailedAttempt records one failed apply: the retry counter goes up
// by exactly one and the item either returns to PENDING or, once the budget
// is spent, reaches terminal FAILED. Increment and status change happen in
// one statement so no crash can separate them.
func (c *Connection) MarkItemFailedAttempt(id string, maxRetries int, failure string) (shared.Status, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	var status shared.Status
	err := c.Db.QueryRow(ctx, `
		UPDATE sync_queue_item
		SET retry_count = retry_count + 1,
		    error = $2,
		    status = CASE WHEN retry_count + 1 >= $3 THEN 'FAILED' ELSE 'PENDING' END,
		    updated_at = now()
		WHERE id = $1
		RETURNING status
	`, id, failure, maxRetries).Scan(&status)
	if err != nil {
		return "", err
	}
	return status, nil
}

// GetQueueStatus aggregates the user's queue by status, entity type and
// action. Results are cached briefly since clients tend to poll this while
// a sync is running.
func (c *Connection) GetQueueStatus(userID string, maxRetries int) (shared.QueueStatus, error) {
	if c.statusCache != nil {
		if cached, found := c.statusCache.Get(userID); found {
			return cached.(shared.QueueStatus), nil
		}
	}

	ctx, cncl := get1MinuteContext()
	defer cncl()

	var status shared.QueueStatus
	err := c.Db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('PENDING', 'PROCESSING') AND retry_count < $2),
			COUNT(*) FILTER (WHERE status = 'SYNCED'),
			COUNT(*) FILTER (WHERE status = 'FAILED' OR retry_count >= $2)
		FROM sync_queue_item
		WHERE user_id = $1
	`, userID, maxRetries).Scan(&status.Pending, &status.Synced, &status.Failed)
	if err != nil {
		return shared.QueueStatus{}, err
	}

	status.ByEntityType, err = c.countOutstandingBy(userID, "entity_type")
	if err != nil {
		return shared.QueueStatus{}, err
	}
	status.ByAction, err = c.countOutstandingBy(userID, "action")
	if err != nil {
		return shared.QueueStatus{}, err
	}

	if c.statusCache != nil {
		c.statusCache.Set(userID, status, statusCacheTTL)
	}
	return status, nil
}

// countOutstandingBy groups the user's not-yet-synced items (PENDING,
// PROCESSING, FAILED) by the given column. column is one of two hardcoded
// callers, never user input.
func (c *Connection) countOutstandingBy(userID string, column string) ([]shared.CountBucket, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	rows, err := c.Db.Query(ctx, `
		SELECT `+column+`, COUNT(*)
		FROM sync_queue_item
		WHERE user_id = $1
		  AND status IN ('PENDING', 'PROCESSING', 'FAILED')
		GROUP BY `+column+`
		ORDER BY `+column+`
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []shared.CountBucket
	for rows.Next() {
		var b shared.CountBucket
		if err = rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}
