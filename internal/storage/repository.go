package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"presupuesto/internal/core"
)

// SQLiteCache stores the local snapshot in a SQLite file.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (or creates) the database at dbPath and migrates it.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SQLiteCache) Load(ctx context.Context) (core.Snapshot, bool, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key, payload FROM local_cache`)
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("query local cache: %w", err)
	}
	defer rows.Close()

	entries := map[string][]byte{}
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return core.Snapshot{}, false, fmt.Errorf("scan local cache: %w", err)
		}
		entries[key] = []byte(payload)
	}
	if err := rows.Err(); err != nil {
		return core.Snapshot{}, false, fmt.Errorf("iterate local cache: %w", err)
	}
	if len(entries) == 0 {
		return core.Snapshot{}, false, nil
	}

	s, err := decodeSnapshot(entries)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	return s, true, nil
}

// Save replaces every entity key in a single transaction.
func (c *SQLiteCache) Save(ctx context.Context, s core.Snapshot) error {
	entries, err := encodeSnapshot(s)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, key := range EntityKeys {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO local_cache (key, payload, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
			key, string(entries[key]), now)
		if err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (c *SQLiteCache) MarkPending(ctx context.Context, at time.Time) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE sync_state SET pending = 1, pending_since = COALESCE(pending_since, ?) WHERE id = 1`,
		at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	return nil
}

func (c *SQLiteCache) ClearPending(ctx context.Context, at time.Time) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE sync_state SET pending = 0, pending_since = NULL, last_synced_at = ? WHERE id = 1`,
		at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Pending(ctx context.Context) (bool, error) {
	var pending int
	err := c.db.QueryRowContext(ctx, `SELECT pending FROM sync_state WHERE id = 1`).Scan(&pending)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read sync state: %w", err)
	}
	return pending == 1, nil
}
