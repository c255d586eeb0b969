package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aktagon/copostr/migrations"
)

// ErrNotFound is returned when no matching record exists in the index
var ErrNotFound = errors.New("image not found")

// ImageStore reads and updates image records
type ImageStore interface {
	NextPending(ctx context.Context) (*ImageRecord, error)
	ResetRetryable(ctx context.Context) (int64, error)
	WriteStatus(ctx context.Context, id uint64, status Status) (int64, error)
}

// imageRow mirrors the columns written by the indexer
type imageRow struct {
	ID       uint64 `db:"id"`
	Title    string `db:"title"`
	Source   string `db:"source"`
	Image    string `db:"image"`
	Licence  string `db:"license"`
	StatusID Status `db:"status"`
}

func (r imageRow) record() *ImageRecord {
	return &ImageRecord{
		ID:        r.ID,
		Title:     r.Title,
		SourceURL: r.Source,
		ImageURL:  r.Image,
		Licence:   ParseLicence(r.Licence),
		Status:    r.StatusID,
	}
}

// SQLiteStore is an ImageStore backed by the index database
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore wraps an open database handle
func NewSQLiteStore(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenStore opens the index at path and applies schema migrations
func OpenStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to index %s: %w", path, err)
	}

	if err := migrations.Up(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating index %s: %w", path, err)
	}

	return NewSQLiteStore(db), nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// NextPending returns the unposted record with the lowest id
func (s *SQLiteStore) NextPending(ctx context.Context) (*ImageRecord, error) {
	query := `
		SELECT id, COALESCE(title, '') AS title, COALESCE(source, '') AS source,
			COALESCE(image, '') AS image, COALESCE(license, '') AS license, status
		FROM images
		WHERE status = ?
		ORDER BY id
		LIMIT 1
	`

	var row imageRow
	err := s.db.GetContext(ctx, &row, query, StatusUnposted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("selecting unposted image: %w", err)
	}

	return row.record(), nil
}

// ResetRetryable marks every record except oversized images as unposted
func (s *SQLiteStore) ResetRetryable(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE images SET status = ? WHERE status != ?`,
		StatusUnposted, StatusImageTooLarge)
	if err != nil {
		return 0, fmt.Errorf("resetting index: %w", err)
	}
	return rowsAffected(res)
}

// WriteStatus sets the status of the record with the given id
func (s *SQLiteStore) WriteStatus(ctx context.Context, id uint64, status Status) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE images SET status = ? WHERE id = ?`, status, int64(id))
	if err != nil {
		return 0, fmt.Errorf("writing status for image %d: %w", id, err)
	}
	return rowsAffected(res)
}

// CountByStatus returns the number of records per status
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	var rows []struct {
		StatusID Status `db:"status"`
		Count    int64  `db:"count"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM images GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting images: %w", err)
	}

	counts := make(map[Status]int64, len(AllStatuses))
	for _, st := range AllStatuses {
		counts[st] = 0
	}
	for _, r := range rows {
		counts[r.StatusID] = r.Count
	}
	return counts, nil
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
}
