package dispatcher

import (
	"fmt"

	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/postgresql"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

// AppointmentHandler is the one handler with an explicit dedup key. A CREATE
// replayed after an unacknowledged sync must not produce a second
// appointment row, so CREATE goes through the natural-key upsert.
type AppointmentHandler struct {
	pg *postgresql.Connection
}

func (h *AppointmentHandler) Apply(action shared.Action, entityID *string, payload []byte, userID string) (any, error) {
	switch action {
	case shared.ActionCreate:
		var p shared.AppointmentPayload
		if err := decodePayload(action, payload, &p); err != nil {
			return nil, err
		}
		id, created, err := h.pg.UpsertAppointmentByNaturalKey(userID, &p)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": id, "created": created}, nil

	case shared.ActionUpdate:
		id, err := requireEntityID(action, entityID)
		if err != nil {
			return nil, err
		}
		var p shared.AppointmentPayload
		if err = decodePayload(action, payload, &p); err != nil {
			return nil, err
		}
		if err = h.pg.UpdateAppointment(userID, id, &p); err != nil {
			return nil, err
		}
		return map[string]any{"id": id}, nil

	case shared.ActionDelete:
		id, err := requireEntityID(action, entityID)
		if err != nil {
			return nil, err
		}
		if err = h.pg.DeleteAppointment(userID, id); err != nil {
			return nil, err
		}
		return map[string]any{"id": id, "deleted": true}, nil

	default:
		return nil, fmt.Errorf("%w %q for appointment", ErrUnsupportedAction, string(action))
	}
}
