package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const migrationsTable = "relay_schema_migrations"

// OpenPostgres applies the schema migrations and opens the pool.
func OpenPostgres(dbURL, migrationsPath string) (*sql.DB, error) {
	m, err := migrate.New(migrationsPath, MigrationURL(dbURL, migrationsTable))
	if err != nil {
		return nil, fmt.Errorf("could not create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("could not apply migration: %w", err)
	}
	log.Info("Database migration successfully applied")

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	return db, nil
}

// MigrationURL points golang-migrate at its own bookkeeping table so the
// relay can share a database with other services.
func MigrationURL(dbURL, table string) string {
	if strings.Contains(dbURL, "?") {
		return dbURL + "&x-migrations-table=" + table
	}
	return dbURL + "?x-migrations-table=" + table
}
