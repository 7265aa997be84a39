package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/viant/visual-archive/engine"
)

// SQLite stores artifacts as rows of the archive_storage table and
// coordinates writers through archive_storage_locks.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file at path and ensures the
// schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := engine.OpenFile(path)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLite(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an existing connection and ensures the schema.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: db is nil")
	}
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// EnsureSchema creates the storage and lock tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS archive_storage (
    key        TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    updated_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("storage: create archive_storage: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS archive_storage_locks (
    name      TEXT PRIMARY KEY,
    owner     TEXT NOT NULL,
    locked_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("storage: create archive_storage_locks: %w", err)
	}
	return nil
}

// DB exposes the underlying connection.
func (s *SQLite) DB() *sql.DB { return s.db }

// Close closes the underlying connection.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM archive_storage WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: get %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *SQLite) Put(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO archive_storage(key, data, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`, key, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM archive_storage WHERE key = ?`, key)
	return err
}

func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM archive_storage WHERE key = ?`, key).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Lock acquires the named row lock. locked_at is renewed while the lock is
// held; a row not renewed for two minutes is reclaimed.
func (s *SQLite) Lock(ctx context.Context, name string) (func() error, error) {
	owner := uuid.NewString()
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Join(ErrLocked, err)
		}
		held, err := s.tryLock(ctx, name, owner)
		if err != nil {
			return nil, err
		}
		if held {
			release := hold(owner, func() error { return s.refreshLock(name, owner) })
			return func() error {
				rerr := release()
				_, err := s.db.ExecContext(context.Background(), `DELETE FROM archive_storage_locks WHERE name = ? AND owner = ?`, name, owner)
				return errors.Join(rerr, err)
			}, nil
		}
		if err := waitRetry(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *SQLite) tryLock(ctx context.Context, name, owner string) (bool, error) {
	now := time.Now().Unix()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO archive_storage_locks(name, owner, locked_at) VALUES(?, ?, ?)`, name, owner, now); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	var current string
	var lockedAt int64
	if err := tx.QueryRowContext(ctx, `SELECT owner, locked_at FROM archive_storage_locks WHERE name = ?`, name).Scan(&current, &lockedAt); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if current != owner && !isLiveOwner(current) && lockedAt <= time.Now().Add(-lockStaleAfter).Unix() {
		res, err := tx.ExecContext(ctx, `UPDATE archive_storage_locks SET owner = ?, locked_at = ? WHERE name = ? AND owner = ? AND locked_at = ?`, owner, now, name, current, lockedAt)
		if err != nil {
			_ = tx.Rollback()
			return false, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			current = owner
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return current == owner, nil
}

// refreshLock renews locked_at while owner still holds the lock.
func (s *SQLite) refreshLock(name, owner string) error {
	res, err := s.db.ExecContext(context.Background(), `UPDATE archive_storage_locks SET locked_at = ? WHERE name = ? AND owner = ?`, time.Now().Unix(), name, owner)
	if err != nil {
		return fmt.Errorf("storage: refresh lock %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: lock %s no longer held", name)
	}
	return nil
}

var (
	_ Store  = (*SQLite)(nil)
	_ Locker = (*SQLite)(nil)
)
