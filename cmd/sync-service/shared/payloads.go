package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Payload shapes per entity type. The queue stores payloads as opaque jsonb;
// these structs are the one place that interprets them. Validation runs twice:
// once when the client batch is accepted and once again when the handler
// decodes the claimed item, so malformed blobs are rejected as early as
// possible instead of being discovered mid-batch.

type AppointmentPayload struct {
	PatientID       string `json:"patientId"`
	ProviderID      string `json:"providerId"`
	AppointmentDate string `json:"appointmentDate"`
	Reason          string `json:"reason,omitempty"`
	Status          string `json:"status,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

func (p *AppointmentPayload) Validate(action Action) error {
	if action == ActionDelete {
		return nil
	}
	if p.PatientID == "" {
		return errors.New("appointment payload is missing patientId")
	}
	if p.ProviderID == "" {
		return errors.New("appointment payload is missing providerId")
	}
	if p.AppointmentDate == "" {
		return errors.New("appointment payload is missing appointmentDate")
	}
	if _, err := time.Parse(time.RFC3339, p.AppointmentDate); err != nil {
		return fmt.Errorf("appointmentDate is not RFC3339: %w", err)
	}
	return nil
}

type ConsultationPayload struct {
	PatientID  string `json:"patientId"`
	ProviderID string `json:"providerId"`
	StartedAt  string `json:"startedAt"`
	Summary    string `json:"summary,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func (p *ConsultationPayload) Validate(action Action) error {
	if p.PatientID == "" {
		return errors.New("consultation payload is missing patientId")
	}
	if p.StartedAt == "" {
		return errors.New("consultation payload is missing startedAt")
	}
	if _, err := time.Parse(time.RFC3339, p.StartedAt); err != nil {
		return fmt.Errorf("startedAt is not RFC3339: %w", err)
	}
	return nil
}

type HabitEntryPayload struct {
	HabitID   string  `json:"habitId"`
	EntryDate string  `json:"entryDate"`
	Value     float64 `json:"value"`
	Notes     string  `json:"notes,omitempty"`
}

func (p *HabitEntryPayload) Validate(action Action) error {
	if p.HabitID == "" {
		return errors.New("habit entry payload is missing habitId")
	}
	if p.EntryDate == "" {
		return errors.New("habit entry payload is missing entryDate")
	}
	return nil
}

type MedicationLogPayload struct {
	MedicationID string `json:"medicationId"`
	TakenAt      string `json:"takenAt"`
	Dose         string `json:"dose,omitempty"`
	Skipped      bool   `json:"skipped,omitempty"`
}

func (p *MedicationLogPayload) Validate(action Action) error {
	if p.MedicationID == "" {
		return errors.New("medication log payload is missing medicationId")
	}
	if p.TakenAt == "" {
		return errors.New("medication log payload is missing takenAt")
	}
	if _, err := time.Parse(time.RFC3339, p.TakenAt); err != nil {
		return fmt.Errorf("takenAt is not RFC3339: %w", err)
	}
	return nil
}

type MonitoringReadingPayload struct {
	// OwnerID is ignored on apply; the acting user always becomes the owner.
	OwnerID    string  `json:"ownerId,omitempty"`
	Kind       string  `json:"kind"`
	RecordedAt string  `json:"recordedAt"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit,omitempty"`
}

func (p *MonitoringReadingPayload) Validate(action Action) error {
	if p.Kind == "" {
		return errors.New("monitoring payload is missing kind")
	}
	if p.RecordedAt == "" {
		return errors.New("monitoring payload is missing recordedAt")
	}
	if _, err := time.Parse(time.RFC3339, p.RecordedAt); err != nil {
		return fmt.Errorf("recordedAt is not RFC3339: %w", err)
	}
	return nil
}

type payloadValidator interface {
	Validate(action Action) error
}

// ValidatePayload decodes and validates a payload blob for the given
// (entityType, action) pair. It returns an error for entity types the
// platform cannot synchronize.
func ValidatePayload(entityType string, action Action, payload []byte) error {
	if !action.IsValid() {
		return fmt.Errorf("unknown action %q", string(action))
	}
	var v payloadValidator
	switch entityType {
	case EntityAppointment:
		v = &AppointmentPayload{}
	case EntityConsultation:
		v = &ConsultationPayload{}
	case EntityHabitEntry:
		v = &HabitEntryPayload{}
	case EntityMedicationLog:
		v = &MedicationLogPayload{}
	case EntityMonitoringData:
		v = &MonitoringReadingPayload{}
	default:
		return fmt.Errorf("unknown entity type %q", entityType)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return v.Validate(action)
}
