package dispatcher

import (
	"errors"

	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

var (
	// ErrUnknownEntityType means no handler is registered for the item's
	// entity type. Deterministic, so the item burns retry budget until it
	// reaches FAILED.
	ErrUnknownEntityType = errors.New("unknown entity type")
	// ErrUnsupportedAction means the handler exists but does not implement
	// the requested action.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// Handler applies one queued mutation to the canonical store. Every handler
// must be idempotent: delivery is at-least-once, so the same logical
// operation can be applied more than once across retries and orphan
// recovery.
type Handler interface {
	Apply(action shared.Action, entityID *string, payload []byte, userID string) (any, error)
}

// Registry maps an entity type to its handler. Adding a synchronizable
// entity type means registering one handler here; the dispatcher's control
// flow never changes.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to an entity type. Registration happens once at
// startup, before any dispatcher runs, so the map needs no locking.
func (r *Registry) Register(entityType string, h Handler) {
	r.handlers[entityType] = h
}

func (r *Registry) Lookup(entityType string) (Handler, bool) {
	h, ok := r.handlers[entityType]
	return h, ok
}
