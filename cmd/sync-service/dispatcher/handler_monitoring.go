package dispatcher

import (
	"fmt"

	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/postgresql"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

// MonitoringDataHandler stores readings under the acting user, never under
// whatever owner the payload claims. A record queued while impersonating
// must not cross account boundaries on apply.
type MonitoringDataHandler struct {
	pg *postgresql.Connection
}

func (h *MonitoringDataHandler) Apply(action shared.Action, entityID *string, payload []byte, userID string) (any, error) {
	if action != shared.ActionCreate {
		return nil, fmt.Errorf("%w %q for monitoring data", ErrUnsupportedAction, string(action))
	}
	var p shared.MonitoringReadingPayload
	if err := decodePayload(action, payload, &p); err != nil {
		return nil, err
	}
	id, err := h.pg.InsertMonitoringReading(userID, &p)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}
