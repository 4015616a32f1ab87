package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"occtitles/pkg/db"
)

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Failed to read state", "key", key, "error", err)
		}
		return "", false
	}
	return val.String, true
}

const (
	upsertState = `INSERT INTO persistent_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	deleteState = `DELETE FROM persistent_state WHERE key = ?`
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setState(ctx context.Context, ex execer, key, val string) error {
	if _, err := ex.ExecContext(ctx, upsertState, key, val, time.Now()); err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

func deleteStateKey(ctx context.Context, ex execer, key string) error {
	if _, err := ex.ExecContext(ctx, deleteState, key); err != nil {
		return fmt.Errorf("delete state %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	return setState(ctx, s.db, key, val)
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	return deleteStateKey(ctx, s.db, key)
}

func (s *SQLiteStore) ApplyState(ctx context.Context, changes map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if changes[k] == "" {
			err = deleteStateKey(ctx, tx, k)
		} else {
			err = setState(ctx, tx, k, changes[k])
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListState(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM persistent_state")
	if err != nil {
		return nil, fmt.Errorf("list state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v.String
	}
	return out, rows.Err()
}
