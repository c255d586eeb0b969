// Package migrations holds the schema of the image index.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var schema embed.FS

const dir = "sql"

// Ordinals stored in images.status. Existing indexes depend on them, so they
// never change.
const (
	StatusUnposted      = 0
	StatusSuccess       = 1
	StatusDownloadFail  = 2
	StatusImageTooLarge = 3
	StatusPostFail      = 4
)

// Up applies all pending migrations to db. Indexes created by the indexer
// already contain the images table, so the first migration is a no-op there.
func Up(db *sql.DB) error {
	goose.SetBaseFS(schema)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Version returns the current schema version of db
func Version(db *sql.DB) (int64, error) {
	goose.SetBaseFS(schema)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("setting dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}
