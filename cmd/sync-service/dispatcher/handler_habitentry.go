package dispatcher

import (
	"fmt"

	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/postgresql"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

type HabitEntryHandler struct {
	pg *postgresql.Connection
}

func (h *HabitEntryHandler) Apply(action shared.Action, entityID *string, payload []byte, userID string) (any, error) {
	switch action {
	case shared.ActionCreate:
		var p shared.HabitEntryPayload
		if err := decodePayload(action, payload, &p); err != nil {
			return nil, err
		}
		id, err := h.pg.InsertHabitEntry(userID, &p)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": id}, nil

	case shared.ActionUpdate:
		id, err := requireEntityID(action, entityID)
		if err != nil {
			return nil, err
		}
		var p shared.HabitEntryPayload
		if err = decodePayload(action, payload, &p); err != nil {
			return nil, err
		}
		if err = h.pg.UpdateHabitEntry(userID, id, &p); err != nil {
			return nil, err
		}
		return map[string]any{"id": id}, nil

	default:
		return nil, fmt.Errorf("%w %q for habit entry", ErrUnsupportedAction, string(action))
	}
}
