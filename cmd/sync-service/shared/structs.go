package shared

import "time"

type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSynced     Status = "SYNCED"
	StatusFailed     Status = "FAILED"
)

const (
	EntityAppointment    = "appointment"
	EntityConsultation   = "consultation"
	EntityHabitEntry     = "habit-entry"
	EntityMedicationLog  = "medication-log"
	EntityMonitoringData = "monitoring-data"
)

// QueueItem is one queued mutation, persisted server-side in sync_queue_item.
// Items are never deleted by the sync subsystem; SYNCED and FAILED rows stay
// behind as an audit trail of sync attempts.
type QueueItem struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Action     Action     `json:"action"`
	EntityType string     `json:"entityType"`
	EntityID   *string    `json:"entityId,omitempty"`
	Payload    []byte     `json:"payload"`
	Status     Status     `json:"status"`
	Synced     bool       `json:"synced"`
	RetryCount int        `json:"retryCount"`
	Error      *string    `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	SyncedAt   *time.Time `json:"syncedAt,omitempty"`
}

// ItemResult is the per-item outcome of one dispatcher pass.
type ItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SyncReport is returned by the sync trigger endpoint.
type SyncReport struct {
	Processed  int          `json:"processed"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []ItemResult `json:"results"`
}

type CountBucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// QueueStatus is the aggregate view returned by the status endpoint.
// Pending counts PENDING and PROCESSING items that still have retry budget,
// Failed counts FAILED items plus anything past the retry cap.
type QueueStatus struct {
	Pending      int           `json:"pending"`
	Synced       int           `json:"synced"`
	Failed       int           `json:"failed"`
	ByEntityType []CountBucket `json:"byEntityType"`
	ByAction     []CountBucket `json:"byAction"`
}
