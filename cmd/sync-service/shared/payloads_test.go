package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name       string
		entityType string
		action     Action
		payload    string
		wantErr    string
	}{
		{
			name:       "valid appointment create",
			entityType: EntityAppointment,
			action:     ActionCreate,
			payload:    `{"patientId":"p-1","providerId":"pr-1","appointmentDate":"2026-09-01T10:00:00Z"}`,
		},
		{
			name:       "appointment missing providerId",
			entityType: EntityAppointment,
			action:     ActionCreate,
			payload:    `{"patientId":"p-1","appointmentDate":"2026-09-01T10:00:00Z"}`,
			wantErr:    "missing providerId",
		},
		{
			name:       "appointment date not RFC3339",
			entityType: EntityAppointment,
			action:     ActionUpdate,
			payload:    `{"patientId":"p-1","providerId":"pr-1","appointmentDate":"01.09.2026"}`,
			wantErr:    "not RFC3339",
		},
		{
			name:       "appointment delete needs no fields",
			entityType: EntityAppointment,
			action:     ActionDelete,
			payload:    `{}`,
		},
		{
			name:       "valid consultation",
			entityType: EntityConsultation,
			action:     ActionCreate,
			payload:    `{"patientId":"p-1","providerId":"pr-1","startedAt":"2026-09-01T10:00:00Z"}`,
		},
		{
			name:       "habit entry missing habitId",
			entityType: EntityHabitEntry,
			action:     ActionCreate,
			payload:    `{"entryDate":"2026-09-01","value":3}`,
			wantErr:    "missing habitId",
		},
		{
			name:       "valid medication log",
			entityType: EntityMedicationLog,
			action:     ActionCreate,
			payload:    `{"medicationId":"m-1","takenAt":"2026-09-01T08:00:00Z","dose":"10mg"}`,
		},
		{
			name:       "monitoring reading missing kind",
			entityType: EntityMonitoringData,
			action:     ActionCreate,
			payload:    `{"recordedAt":"2026-09-01T08:00:00Z","value":120}`,
			wantErr:    "missing kind",
		},
		{
			name:       "unknown entity type",
			entityType: "lab-result",
			action:     ActionCreate,
			payload:    `{}`,
			wantErr:    "unknown entity type",
		},
		{
			name:       "unknown action",
			entityType: EntityAppointment,
			action:     Action("MERGE"),
			payload:    `{}`,
			wantErr:    "unknown action",
		},
		{
			name:       "malformed json",
			entityType: EntityAppointment,
			action:     ActionCreate,
			payload:    `{"patientId":`,
			wantErr:    "malformed payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.entityType, tt.action, []byte(tt.payload))
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestActionIsValid(t *testing.T) {
	assert.True(t, ActionCreate.IsValid())
	assert.True(t, ActionUpdate.IsValid())
	assert.True(t, ActionDelete.IsValid())
	assert.False(t, Action("").IsValid())
	assert.False(t, Action("create").IsValid())
}
