package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rural-care-hub/rural-care-hub/cmd/automigrate/migrations"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"
)

/*
	To add a new migration:
	1. Add a function taking *sql.Tx to the migrations package.
	2. Append it to the migrationsList with the next version number.
	Applied versions are tracked in the schema_migration table, so reruns
	are safe.
*/

var buildtime string

func main() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	_ = logger.New(logLevel)
	zap.S().Infof("This is automigrate build date: %s", buildtime)

	db := setupPostgres()
	defer func() {
		if err := db.Close(); err != nil {
			zap.S().Errorf("Error closing database: %s", err)
		}
	}()

	if err := migrations.Migrate(db); err != nil {
		zap.S().Fatalf("Migration failed: %s", err)
	}
	zap.S().Infof("All migrations applied")
}

func setupPostgres() *sql.DB {
	PQHost, err := env.GetAsString("POSTGRES_HOST", false, "db")
	if err != nil {
		zap.S().Fatalf("Failed to get POSTGRES_HOST from env: %s", err)
	}
	PQPort, err := env.GetAsInt("POSTGRES_PORT", false, 5432)
	if err != nil {
		zap.S().Fatalf("Failed to get POSTGRES_PORT from env: %s", err)
	}
	PQUser, err := env.GetAsString("POSTGRES_USER", true, "")
	if err != nil {
		zap.S().Fatalf("Failed to get POSTGRES_USER from env: %s", err)
	}
	PQPassword, err := env.GetAsString("POSTGRES_PASSWORD", true, "")
	if err != nil {
		zap.S().Fatalf("Failed to get POSTGRES_PASSWORD from env: %s", err)
	}
	PQDBName, err := env.GetAsString("POSTGRES_DATABASE", true, "")
	if err != nil {
		zap.S().Fatalf("Failed to get POSTGRES_DATABASE from env: %s", err)
	}
	PQSSLMode, err := env.GetAsString("POSTGRES_SSL_MODE", false, "require")
	if err != nil {
		zap.S().Fatalf("Failed to get POSTGRES_SSL_MODE from env: %s", err)
	}

	psqlInfo := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		PQHost, PQPort, PQUser, PQPassword, PQDBName, PQSSLMode)

	db, err := sql.Open("pgx", psqlInfo)
	if err != nil {
		zap.S().Fatalf("Error opening database: %s", err)
	}
	if err = db.Ping(); err != nil {
		zap.S().Fatalf("Database is not reachable: %s", err)
	}
	return db
}
