// Package sqlite is the ledger's relational store.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (or creates) the SQLite database at path and applies pending
// migrations. Pass ":memory:" only for throwaway databases; the pool is capped
// at one connection so an in-memory database stays shared.
func Open(path string, log zerolog.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: open database: %w", err)
	}

	// One writer at a time avoids SQLITE_BUSY between pool connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping database: %w", err)
	}

	if err := migrateUp(db, log); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("Ledger database ready")
	return db, nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// The migrator is never closed: closing it would close db.
func migrateUp(db *sql.DB, log zerolog.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return fmt.Errorf("migrateUp: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug().Msg("No new database migrations to apply")
			return nil
		}
		return fmt.Errorf("migrateUp: apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	log.Info().Uint("version", version).Msg("Database migrations applied")
	return nil
}

// SchemaVersion reports the applied migration version. A database without
// any applied migration reports version 0.
func SchemaVersion(db *sql.DB) (version uint, dirty bool, err error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, false, fmt.Errorf("SchemaVersion: %w", err)
	}

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("SchemaVersion: %w", err)
	}
	return version, dirty, nil
}
