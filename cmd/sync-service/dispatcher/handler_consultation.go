package dispatcher

import (
	"fmt"

	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/postgresql"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

type ConsultationHandler struct {
	pg *postgresql.Connection
}

func (h *ConsultationHandler) Apply(action shared.Action, entityID *string, payload []byte, userID string) (any, error) {
	switch action {
	case shared.ActionCreate:
		var p shared.ConsultationPayload
		if err := decodePayload(action, payload, &p); err != nil {
			return nil, err
		}
		id, err := h.pg.InsertConsultation(userID, &p)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": id}, nil

	case shared.ActionUpdate:
		id, err := requireEntityID(action, entityID)
		if err != nil {
			return nil, err
		}
		var p shared.ConsultationPayload
		if err = decodePayload(action, payload, &p); err != nil {
			return nil, err
		}
		if err = h.pg.UpdateConsultation(userID, id, &p); err != nil {
			return nil, err
		}
		return map[string]any{"id": id}, nil

	default:
		return nil, fmt.Errorf("%w %q for consultation", ErrUnsupportedAction, string(action))
	}
}
