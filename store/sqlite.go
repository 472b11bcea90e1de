// store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	sqliteSchema = `CREATE TABLE IF NOT EXISTS history (
	name    TEXT PRIMARY KEY,
	context TEXT NOT NULL
)`
	// sqliteRow names the single row holding the context.
	sqliteRow = "default"
)

// SQLiteStore keeps the context in a one-row table of a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StorageError{Op: "open", Location: path, Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Location: path, Err: err}
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Location: path, Err: err}
	}
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Location returns the database path.
func (s *SQLiteStore) Location() string { return s.path }

// Save upserts the context row.
func (s *SQLiteStore) Save(ctx context.Context, history string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (name, context) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET context = excluded.context`,
		sqliteRow, history)
	if err != nil {
		return &StorageError{Op: "save", Location: s.path, Err: err}
	}
	s.logger.Debug("history saved", zap.String("path", s.path), zap.Int("bytes", len(history)))
	return nil
}

// Load reads the context row; a missing row yields an empty context.
func (s *SQLiteStore) Load(ctx context.Context) (string, error) {
	var history string
	err := s.db.QueryRowContext(ctx, `SELECT context FROM history WHERE name = ?`, sqliteRow).Scan(&history)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Op: "load", Location: s.path, Err: err}
	}
	return history, nil
}

// Clear deletes the context row.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE name = ?`, sqliteRow); err != nil {
		return &StorageError{Op: "clear", Location: s.path, Err: err}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
