package postgresql

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
	"github.com/rural-care-hub/rural-care-hub/internal"
	"go.uber.org/zap"
)

// ErrAppointmentNotFound reports that an UPDATE targeted an appointment row
// that does not exist (or belongs to another user).
var ErrAppointmentNotFound = errors.New("appointment not found")

// UpsertAppointmentByNaturalKey makes retried appointment CREATEs safe.
// The natural key is (patientId, providerId, appointmentDate) within one
// user's data; if a matching row already exists the incoming payload is
// applied as an update instead of inserting a duplicate. Known keys are
// cached in an ARC keyed by the xxh3 of the tuple.
func (c *Connection) UpsertAppointmentByNaturalKey(userID string, p *shared.AppointmentPayload) (string, bool, error) {
	cacheKey := appointmentCacheKey(userID, p)
	if c.dedupCache != nil {
		if cached, hit := c.dedupCache.Get(cacheKey); hit {
			id := cached.(string)
			err := c.UpdateAppointment(userID, id, p)
			if !errors.Is(err, ErrAppointmentNotFound) {
				return id, false, err
			}
			// The cached row was deleted after it was last seen. Drop the
			// stale entry and take the uncached path so the CREATE inserts
			// a fresh row.
			c.dedupCache.Remove(cacheKey)
		}
	}

	ctx, cncl := get1MinuteContext()
	defer cncl()

	var id string
	err := c.Db.QueryRow(ctx, `
		SELECT id FROM appointment
		WHERE user_id = $1 AND patient_id = $2 AND provider_id = $3 AND appointment_date = $4
	`, userID, p.PatientID, p.ProviderID, p.AppointmentDate).Scan(&id)
	if err == nil {
		c.addAppointmentToCache(cacheKey, id)
		return id, false, c.UpdateAppointment(userID, id, p)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}

	id = uuid.New().String()
	_, err = c.Db.Exec(ctx, `
		INSERT INTO appointment
			(id, user_id, patient_id, provider_id, appointment_date, reason, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`, id, userID, p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the insert race against a concurrent retry of the same
			// CREATE. Fall back to the row that won.
			zap.S().Debugf("Appointment insert race on (%s, %s, %s), updating instead", p.PatientID, p.ProviderID, p.AppointmentDate)
			var existing string
			errSel := c.Db.QueryRow(ctx, `
				SELECT id FROM appointment
				WHERE user_id = $1 AND patient_id = $2 AND provider_id = $3 AND appointment_date = $4
			`, userID, p.PatientID, p.ProviderID, p.AppointmentDate).Scan(&existing)
			if errSel != nil {
				return "", false, errSel
			}
			c.addAppointmentToCache(cacheKey, existing)
			return existing, false, c.UpdateAppointment(userID, existing, p)
		}
		return "", false, err
	}

	c.addAppointmentToCache(cacheKey, id)
	return id, true, nil
}

// UpdateAppointment overwrites the mutable fields of an appointment owned by
// the given user. Re-applying the same payload is a no-op at the storage
// level.
func (c *Connection) UpdateAppointment(userID string, id string, p *shared.AppointmentPayload) error {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	cmdTag, err := c.Db.Exec(ctx, `
		UPDATE appointment
		SET patient_id = $3, provider_id = $4, appointment_date = $5,
		    reason = $6, status = $7, notes = $8, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, id, userID, p.PatientID, p.ProviderID, p.AppointmentDate, p.Reason, p.Status, p.Notes)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
	}
	return nil
}

// DeleteAppointment removes an appointment owned by the given user. Deleting
// a row that is already gone counts as success; a retried DELETE must be
// tolerant of "already deleted".
func (c *Connection) DeleteAppointment(userID string, id string) error {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	cmdTag, err := c.Db.Exec(ctx, `DELETE FROM appointment WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		zap.S().Debugf("Appointment %s already deleted", id)
	}
	return nil
}

func (c *Connection) addAppointmentToCache(key string, id string) {
	if c.dedupCache != nil {
		c.dedupCache.Add(key, id)
	}
}

func appointmentCacheKey(userID string, p *shared.AppointmentPayload) string {
	return string(internal.AsXXHash([]byte(userID), []byte(p.PatientID), []byte(p.ProviderID), []byte(p.AppointmentDate)))
}
