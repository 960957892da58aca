package store

import (
	"testing"

	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAppointment = `{"patientId":"p-1","providerId":"pr-1","appointmentDate":"2026-09-01T10:00:00Z"}`
const validHabitEntry = `{"habitId":"h-1","entryDate":"2026-09-01","value":1}`

func openTestStore(t *testing.T) *Store {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestEnqueueAndListFIFO(t *testing.T) {
	s := openTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Enqueue(shared.ActionCreate, shared.EntityAppointment, nil, []byte(validAppointment))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, uint64(3), s.Length())

	records, err := s.ListPending(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, ids[i], rec.LocalID)
		assert.Equal(t, shared.ActionCreate, rec.Action)
		assert.Equal(t, shared.EntityAppointment, rec.EntityType)
		assert.False(t, rec.Timestamp.IsZero())
	}

	// Listing does not consume.
	assert.Equal(t, uint64(3), s.Length())
}

func TestListPendingHonorsLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.Enqueue(shared.ActionCreate, shared.EntityHabitEntry, nil, []byte(validHabitEntry))
		require.NoError(t, err)
	}

	records, err := s.ListPending(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestEnqueueRejectsInvalidPayload(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Enqueue(shared.ActionCreate, shared.EntityAppointment, nil, []byte(`{"patientId":"p-1"}`))
	assert.Error(t, err)

	_, err = s.Enqueue(shared.ActionCreate, "lab-result", nil, []byte(`{}`))
	assert.ErrorContains(t, err, "unknown entity type")

	assert.Equal(t, uint64(0), s.Length())
}

func TestEnqueueRequiresEntityIDForUpdateAndDelete(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Enqueue(shared.ActionUpdate, shared.EntityAppointment, nil, []byte(validAppointment))
	assert.ErrorContains(t, err, "requires an entityId")

	entityID := "appt-1"
	_, err = s.Enqueue(shared.ActionDelete, shared.EntityAppointment, &entityID, []byte(`{}`))
	assert.NoError(t, err)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	id, err := s.Enqueue(shared.ActionCreate, shared.EntityAppointment, nil, []byte(validAppointment))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer func() {
		_ = reopened.Close()
	}()

	records, err := reopened.ListPending(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].LocalID)
}

func TestRemoveConfirmed(t *testing.T) {
	s := openTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Enqueue(shared.ActionCreate, shared.EntityHabitEntry, nil, []byte(validHabitEntry))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	removed, err := s.RemoveConfirmed(map[string]bool{ids[1]: true})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, uint64(2), s.Length())

	// The unconfirmed records keep their relative order.
	records, err := s.ListPending(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ids[0], records[0].LocalID)
	assert.Equal(t, ids[2], records[1].LocalID)
}

func TestRemoveSingleRecord(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Enqueue(shared.ActionCreate, shared.EntityHabitEntry, nil, []byte(validHabitEntry))
	require.NoError(t, err)

	require.NoError(t, s.Remove(id))
	assert.Equal(t, uint64(0), s.Length())
}

func TestRemoveConfirmedNothingConfirmed(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Enqueue(shared.ActionCreate, shared.EntityHabitEntry, nil, []byte(validHabitEntry))
	require.NoError(t, err)

	removed, err := s.RemoveConfirmed(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, uint64(1), s.Length())
}
