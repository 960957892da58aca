package postgresql

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

func (c *Connection) InsertConsultation(userID string, p *shared.ConsultationPayload) (string, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	id := uuid.New().String()
	_, err := c.Db.Exec(ctx, `
		INSERT INTO consultation
			(id, user_id, patient_id, provider_id, started_at, summary, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, id, userID, p.PatientID, p.ProviderID, p.StartedAt, p.Summary, p.Notes)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *Connection) UpdateConsultation(userID string, id string, p *shared.ConsultationPayload) error {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	cmdTag, err := c.Db.Exec(ctx, `
		UPDATE consultation
		SET patient_id = $3, provider_id = $4, started_at = $5, summary = $6, notes = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, id, userID, p.PatientID, p.ProviderID, p.StartedAt, p.Summary, p.Notes)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return errors.New("consultation " + id + " not found")
	}
	return nil
}
