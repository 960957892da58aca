package migrations

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

type migration struct {
	version int
	name    string
	apply   func(tx *sql.Tx) error
}

var migrationsList = []migration{
	{1, "sync schema", v1SyncSchema},
}

// Migrate applies all migrations not yet recorded in schema_migration.
// Each migration runs in its own transaction together with the version
// bookkeeping row, so a failed migration leaves nothing half-applied.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migration (
			version    integer PRIMARY KEY,
			name       text NOT NULL,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migration table: %w", err)
	}

	for _, m := range migrationsList {
		var exists bool
		err = db.QueryRow(`SELECT EXISTS (SELECT 1 FROM schema_migration WHERE version = $1)`, m.version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.version, err)
		}
		if exists {
			zap.S().Debugf("Migration %d (%s) already applied", m.version, m.name)
			continue
		}

		zap.S().Infof("Applying migration %d (%s)", m.version, m.name)
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}
		if err = m.apply(tx); err != nil {
			if errR := tx.Rollback(); errR != nil {
				zap.S().Errorf("Error while rolling back migration %d: %v", m.version, errR)
			}
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		if _, err = tx.Exec(`INSERT INTO schema_migration (version, name) VALUES ($1, $2)`, m.version, m.name); err != nil {
			if errR := tx.Rollback(); errR != nil {
				zap.S().Errorf("Error while rolling back migration %d: %v", m.version, errR)
			}
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
		zap.S().Infof("Applied migration %d (%s)", m.version, m.name)
	}
	return nil
}
