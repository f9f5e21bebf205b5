package filestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps files in a SQLite table with integer versions.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for tests.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS files (
		id         TEXT PRIMARY KEY,
		content    TEXT NOT NULL,
		version    INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Read(ctx context.Context, id string) (File, error) {
	var (
		content string
		version int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT content, version FROM files WHERE id = ?`, id).Scan(&content, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, notFound(id)
	}
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", id, err)
	}
	return File{ID: id, Content: content, Version: strconv.FormatInt(version, 10)}, nil
}

func (s *SQLiteStore) Write(ctx context.Context, id, content, expected string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM files WHERE id = ?`, id).Scan(&current)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read version %s: %w", id, err)
	}

	actual := ""
	if exists {
		actual = strconv.FormatInt(current, 10)
	}
	if expected != AnyVersion && expected != actual {
		return "", &ConflictError{ID: id, Expected: expected, Actual: actual}
	}

	next := current + 1
	now := time.Now().Unix()
	if exists {
		_, err = tx.ExecContext(ctx,
			`UPDATE files SET content = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?`,
			content, next, now, id, current)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO files (id, content, version, updated_at) VALUES (?, ?, ?, ?)`,
			id, content, next, now)
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit %s: %w", id, err)
	}
	return strconv.FormatInt(next, 10), nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM files ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
