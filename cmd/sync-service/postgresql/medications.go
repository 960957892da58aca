package postgresql

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

func (c *Connection) InsertMedicationLog(userID string, p *shared.MedicationLogPayload) (string, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	id := uuid.New().String()
	_, err := c.Db.Exec(ctx, `
		INSERT INTO medication_log
			(id, user_id, medication_id, taken_at, dose, skipped, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, id, userID, p.MedicationID, p.TakenAt, p.Dose, p.Skipped)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *Connection) UpdateMedicationLog(userID string, id string, p *shared.MedicationLogPayload) error {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	cmdTag, err := c.Db.Exec(ctx, `
		UPDATE medication_log
		SET medication_id = $3, taken_at = $4, dose = $5, skipped = $6, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, id, userID, p.MedicationID, p.TakenAt, p.Dose, p.Skipped)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return errors.New("medication log " + id + " not found")
	}
	return nil
}
