package migrations

import "database/sql"

// v1SyncSchema creates the sync queue and the canonical entity tables.
// The partial unique index on appointment backs the natural-key dedup of
// retried CREATEs.
func v1SyncSchema(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sync_queue_item (
			id          uuid PRIMARY KEY,
			user_id     text NOT NULL,
			action      text NOT NULL,
			entity_type text NOT NULL,
			entity_id   text,
			payload     jsonb NOT NULL,
			status      text NOT NULL DEFAULT 'PENDING',
			synced      boolean NOT NULL DEFAULT false,
			retry_count integer NOT NULL DEFAULT 0,
			error       text,
			created_at  timestamptz NOT NULL DEFAULT now(),
			updated_at  timestamptz NOT NULL DEFAULT now(),
			synced_at   timestamptz
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_dispatch
			ON sync_queue_item (user_id, status, retry_count, created_at)`,

		`CREATE TABLE IF NOT EXISTS appointment (
			id               uuid PRIMARY KEY,
			user_id          text NOT NULL,
			patient_id       text NOT NULL,
			provider_id      text NOT NULL,
			appointment_date timestamptz NOT NULL,
			reason           text,
			status           text,
			notes            text,
			created_at       timestamptz NOT NULL DEFAULT now(),
			updated_at       timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointment_natural_key
			ON appointment (user_id, patient_id, provider_id, appointment_date)`,

		`CREATE TABLE IF NOT EXISTS consultation (
			id          uuid PRIMARY KEY,
			user_id     text NOT NULL,
			patient_id  text NOT NULL,
			provider_id text,
			started_at  timestamptz NOT NULL,
			summary     text,
			notes       text,
			created_at  timestamptz NOT NULL DEFAULT now(),
			updated_at  timestamptz NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS habit_entry (
			id         uuid PRIMARY KEY,
			user_id    text NOT NULL,
			habit_id   text NOT NULL,
			entry_date text NOT NULL,
			value      double precision NOT NULL DEFAULT 0,
			notes      text,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS medication_log (
			id            uuid PRIMARY KEY,
			user_id       text NOT NULL,
			medication_id text NOT NULL,
			taken_at      timestamptz NOT NULL,
			dose          text,
			skipped       boolean NOT NULL DEFAULT false,
			created_at    timestamptz NOT NULL DEFAULT now(),
			updated_at    timestamptz NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS monitoring_reading (
			id          uuid PRIMARY KEY,
			owner_id    text NOT NULL,
			kind        text NOT NULL,
			recorded_at timestamptz NOT NULL,
			value       double precision NOT NULL DEFAULT 0,
			unit        text,
			created_at  timestamptz NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
