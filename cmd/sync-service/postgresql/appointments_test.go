package postgresql

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAppointmentPayload() *shared.AppointmentPayload {
	return &shared.AppointmentPayload{
		PatientID:       "patient-1",
		ProviderID:      "provider-1",
		AppointmentDate: "2026-09-01T10:00:00Z",
		Reason:          "checkup",
		Status:          "scheduled",
	}
}

func TestUpsertAppointmentInsertsNewRow(t *testing.T) {
	c, mock := CreateMockConnection(t)
	defer mock.Close()
	p := testAppointmentPayload()

	mock.ExpectQuery(`SELECT id FROM appointment\s+WHERE user_id = \$1 AND patient_id = \$2 AND provider_id = \$3 AND appointment_date = \$4`).
		WithArgs("user-1", p.PatientID, p.ProviderID, p.AppointmentDate).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO appointment`).
		WithArgs(pgxmock.AnyArg(), "user-1", p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, created, err := c.UpsertAppointmentByNaturalKey("user-1", p)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAppointmentUpdatesExistingRow(t *testing.T) {
	c, mock := CreateMockConnection(t)
	defer mock.Close()
	p := testAppointmentPayload()

	mock.ExpectQuery(`SELECT id FROM appointment`).
		WithArgs("user-1", p.PatientID, p.ProviderID, p.AppointmentDate).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("appt-1"))
	mock.ExpectExec(`UPDATE appointment`).
		WithArgs("appt-1", "user-1", p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	id, created, err := c.UpsertAppointmentByNaturalKey("user-1", p)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "appt-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAppointmentUsesDedupCache(t *testing.T) {
	c, mock := CreateMockConnection(t)
	defer mock.Close()
	p := testAppointmentPayload()
	c.dedupCache.Add(appointmentCacheKey("user-1", p), "appt-1")

	// No SELECT: the natural key is already known, so the call goes
	// straight to the update.
	mock.ExpectExec(`UPDATE appointment`).
		WithArgs("appt-1", "user-1", p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	id, created, err := c.UpsertAppointmentByNaturalKey("user-1", p)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "appt-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAppointmentReinsertsAfterDelete(t *testing.T) {
	c, mock := CreateMockConnection(t)
	defer mock.Close()
	p := testAppointmentPayload()

	// The cache still remembers a row that has since been deleted. The
	// cached update matches nothing, so the upsert must drop the stale
	// entry and insert a fresh row instead of failing.
	c.dedupCache.Add(appointmentCacheKey("user-1", p), "appt-old")

	mock.ExpectExec(`UPDATE appointment`).
		WithArgs("appt-old", "user-1", p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT id FROM appointment`).
		WithArgs("user-1", p.PatientID, p.ProviderID, p.AppointmentDate).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO appointment`).
		WithArgs(pgxmock.AnyArg(), "user-1", p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, created, err := c.UpsertAppointmentByNaturalKey("user-1", p)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "appt-old", id)
	assert.NoError(t, mock.ExpectationsWereMet())

	// The stale entry was replaced with the new row's id.
	cached, hit := c.dedupCache.Get(appointmentCacheKey("user-1", p))
	require.True(t, hit)
	assert.Equal(t, id, cached.(string))
}

func TestUpsertAppointmentCacheMissStillPropagatesUpdateErrors(t *testing.T) {
	c, mock := CreateMockConnection(t)
	defer mock.Close()
	p := testAppointmentPayload()
	c.dedupCache.Add(appointmentCacheKey("user-1", p), "appt-1")

	// A transport failure on the cached update is not a missing row and
	// must not trigger an insert.
	mock.ExpectExec(`UPDATE appointment`).
		WithArgs("appt-1", "user-1", p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes).
		WillReturnError(&pgconn.PgError{Code: "57P01", Message: "terminating connection"})

	_, _, err := c.UpsertAppointmentByNaturalKey("user-1", p)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAppointmentSurvivesInsertRace(t *testing.T) {
	c, mock := CreateMockConnection(t)
	defer mock.Close()
	p := testAppointmentPayload()

	mock.ExpectQuery(`SELECT id FROM appointment`).
		WithArgs("user-1", p.PatientID, p.ProviderID, p.AppointmentDate).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO appointment`).
		WithArgs(pgxmock.AnyArg(), "user-1", p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_appointment_natural_key"})
	mock.ExpectQuery(`SELECT id FROM appointment`).
		WithArgs("user-1", p.PatientID, p.ProviderID, p.AppointmentDate).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("appt-winner"))
	mock.ExpectExec(`UPDATE appointment`).
		WithArgs("appt-winner", "user-1", p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	id, created, err := c.UpsertAppointmentByNaturalKey("user-1", p)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "appt-winner", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentMissingRow(t *testing.T) {
	c, mock := CreateMockConnection(t)
	defer mock.Close()
	p := testAppointmentPayload()

	mock.ExpectExec(`UPDATE appointment`).
		WithArgs("appt-gone", "user-1", p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := c.UpdateAppointment("user-1", "appt-gone", p)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentScopedToOwningUser(t *testing.T) {
	c, mock := CreateMockConnection(t)
	defer mock.Close()
	p := testAppointmentPayload()

	// The row exists but belongs to another user, so the scoped update
	// matches nothing.
	mock.ExpectExec(`UPDATE appointment`).
		WithArgs("appt-1", "user-2", p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := c.UpdateAppointment("user-2", "appt-1", p)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAppointmentIdempotent(t *testing.T) {
	c, mock := CreateMockConnection(t)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM appointment WHERE id = \$1 AND user_id = \$2`).
		WithArgs("appt-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	assert.NoError(t, c.DeleteAppointment("user-1", "appt-1"))

	// A retried DELETE hits a row that is already gone; still a success.
	mock.ExpectExec(`DELETE FROM appointment WHERE id = \$1 AND user_id = \$2`).
		WithArgs("appt-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.NoError(t, c.DeleteAppointment("user-1", "appt-1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
