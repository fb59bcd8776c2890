package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS scene_snapshots (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	saved_at INTEGER NOT NULL,
	tiles    INTEGER NOT NULL,
	actors   INTEGER NOT NULL,
	blob     BLOB NOT NULL
)`

// ErrNoSnapshot is returned by LatestSnapshot on an empty store.
var ErrNoSnapshot = errors.New("storage: no snapshot")

// Snapshot is one stored scene blob.
type Snapshot struct {
	ID      int64
	SavedAt time.Time
	Tiles   int
	Actors  int
	Blob    []byte
}

// Store keeps scene snapshots in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveSnapshot appends snap and returns its id.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if len(snap.Blob) == 0 {
		return 0, ErrEmptyBlob
	}
	savedAt := snap.SavedAt.UTC()
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO scene_snapshots (saved_at, tiles, actors, blob) VALUES (?, ?, ?, ?)`,
		savedAt.UnixMilli(), snap.Tiles, snap.Actors, snap.Blob,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

// LatestSnapshot returns the most recently saved snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := ctx.Err(); err != nil {
		return snap, err
	}
	if s == nil || s.sqlDB == nil {
		return snap, fmt.Errorf("storage is not configured")
	}
	var savedAt int64
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, saved_at, tiles, actors, blob FROM scene_snapshots ORDER BY id DESC LIMIT 1`,
	)
	if err := row.Scan(&snap.ID, &savedAt, &snap.Tiles, &snap.Actors, &snap.Blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snap, ErrNoSnapshot
		}
		return snap, fmt.Errorf("select snapshot: %w", err)
	}
	snap.SavedAt = time.UnixMilli(savedAt).UTC()
	return snap, nil
}

// Count reports the number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM scene_snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return count, nil
}
