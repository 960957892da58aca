package postgresql

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

func (c *Connection) InsertHabitEntry(userID string, p *shared.HabitEntryPayload) (string, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	id := uuid.New().String()
	_, err := c.Db.Exec(ctx, `
		INSERT INTO habit_entry
			(id, user_id, habit_id, entry_date, value, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, id, userID, p.HabitID, p.EntryDate, p.Value, p.Notes)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *Connection) UpdateHabitEntry(userID string, id string, p *shared.HabitEntryPayload) error {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	cmdTag, err := c.Db.Exec(ctx, `
		UPDATE habit_entry
		SET habit_id = $3, entry_date = $4, value = $5, notes = $6, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, id, userID, p.HabitID, p.EntryDate, p.Value, p.Notes)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return errors.New("habit entry " + id + " not found")
	}
	return nil
}
