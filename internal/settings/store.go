// Package settings persists per-user application state between runs:
// the recent-files list and view preferences keyed by document path.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS recent_files (
    path       TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    opened_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// ErrNotFound is returned when a preference key has never been set.
var ErrNotFound = errors.New("settings: not found")

// RecentFile is one entry of the recent-files list.
type RecentFile struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	OpenedAt time.Time `json:"openedAt"`
}

// Store is a SQLite-backed settings store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the settings database at path and ensures the
// schema exists. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure settings schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Touch records that a file was opened now, moving it to the head of the
// recent list.
func (s *Store) Touch(ctx context.Context, path, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recent_files(path, name, opened_at) VALUES(?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET name = excluded.name, opened_at = excluded.opened_at`,
		path, name, time.Now().UnixMilli())
	return err
}

// Recent returns up to limit entries, most recently opened first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RecentFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, name, opened_at FROM recent_files ORDER BY opened_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecentFile
	for rows.Next() {
		var f RecentFile
		var openedAt int64
		if err := rows.Scan(&f.Path, &f.Name, &openedAt); err != nil {
			return nil, err
		}
		f.OpenedAt = time.UnixMilli(openedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Forget drops a file from the recent list, for entries whose file no
// longer exists on disk.
func (s *Store) Forget(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recent_files WHERE path = ?`, path)
	return err
}

// SetPreference stores one key/value pair, overwriting any previous
// value.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// Preference returns the stored value for key, or ErrNotFound.
func (s *Store) Preference(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
