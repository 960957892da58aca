package shared

import (
	"encoding/json"
	"time"
)

// Wire types for the batch submit endpoint. The client posts its locally
// queued records; the server validates, enqueues and answers with the
// assigned server ids so the client can clear its local store.

type SubmitRecord struct {
	LocalID    string          `json:"localId" binding:"required"`
	Action     Action          `json:"action" binding:"required"`
	EntityType string          `json:"entityType" binding:"required"`
	EntityID   *string         `json:"entityId,omitempty"`
	Payload    json.RawMessage `json:"payload" binding:"required"`
	Timestamp  time.Time       `json:"timestamp"`
}

type SubmitRequest struct {
	Items []SubmitRecord `json:"items" binding:"required"`
}

type SubmitAccepted struct {
	LocalID string `json:"localId"`
	ID      string `json:"id"`
}

type SubmitRejected struct {
	LocalID string `json:"localId"`
	Error   string `json:"error"`
}

type SubmitReport struct {
	Accepted []SubmitAccepted `json:"accepted"`
	Rejected []SubmitRejected `json:"rejected"`
}
