package postgresql

import (
	"github.com/google/uuid"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
)

// InsertMonitoringReading stores a reading owned by the acting user. Any
// ownerId in the payload is ignored so a record queued under one account can
// never land in another account's data.
func (c *Connection) InsertMonitoringReading(userID string, p *shared.MonitoringReadingPayload) (string, error) {
	ctx, cncl := get1MinuteContext()
	defer cncl()

	id := uuid.New().String()
	_, err := c.Db.Exec(ctx, `
		INSERT INTO monitoring_reading
			(id, owner_id, kind, recorded_at, value, unit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, id, userID, p.Kind, p.RecordedAt, p.Value, p.Unit)
	if err != nil {
		return "", err
	}
	return id, nil
}
