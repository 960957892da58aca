package dispatcher

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/postgresql"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

// DefaultRegistry wires one handler per synchronizable entity type.
func DefaultRegistry(pg *postgresql.Connection) *Registry {
	r := NewRegistry()
	r.Register(shared.EntityAppointment, &AppointmentHandler{pg: pg})
	r.Register(shared.EntityConsultation, &ConsultationHandler{pg: pg})
	r.Register(shared.EntityHabitEntry, &HabitEntryHandler{pg: pg})
	r.Register(shared.EntityMedicationLog, &MedicationLogHandler{pg: pg})
	r.Register(shared.EntityMonitoringData, &MonitoringDataHandler{pg: pg})
	return r
}

// decodePayload unmarshals and re-validates a payload blob right before
// apply. Validation already ran at enqueue time, but the queue row may be
// older than the current schema of its payload shape.
func decodePayload(action shared.Action, payload []byte, v interface {
	Validate(action shared.Action) error
}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return v.Validate(action)
}

func requireEntityID(action shared.Action, entityID *string) (string, error) {
	if entityID == nil || *entityID == "" {
		return "", fmt.Errorf("%s requires an entityId", action)
	}
	return *entityID, nil
}
