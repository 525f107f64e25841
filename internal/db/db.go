package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Connect opens the database and applies driver specific connection settings.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One writer at a time; in-memory databases also vanish per connection.
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	return conn, nil
}

// RunMigrations applies every pending migration found at sourceURL (file://...).
func RunMigrations(conn *sqlx.DB, sourceURL string) error {
	var (
		driver database.Driver
		err    error
	)
	switch conn.DriverName() {
	case DriverSQLite:
		driver, err = sqlite3.WithInstance(conn.DB, &sqlite3.Config{})
	case DriverPostgres:
		driver, err = postgres.WithInstance(conn.DB, &postgres.Config{})
	default:
		return fmt.Errorf("no migration driver for %q", conn.DriverName())
	}
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, conn.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
