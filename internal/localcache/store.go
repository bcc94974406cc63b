package localcache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"vidash/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Cache is a best-effort key/value store.
type Cache struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	sizes map[string]int64
}

// Open connects to the cache database at path, creating it when missing.
// Failures are logged and yield a no-op cache.
func Open(path string, logger *slog.Logger) *Cache {
	logger = logging.NewComponentLogger(logger, "localcache")
	c := &Cache{path: strings.TrimSpace(path), logger: logger, sizes: map[string]int64{}}
	if c.path == "" {
		return c
	}
	db, err := openDB(c.path)
	if err != nil {
		logging.WarnWithContext(logger, "local cache unavailable", "localcache_open_failed",
			logging.Error(err),
			logging.String("path", c.path),
			logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
			logging.String(logging.FieldImpact, "layout preferences will not survive restarts"))
		return c
	}
	c.db = db
	c.sizes = c.loadFileSizes()
	return c
}

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if err := initSchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// initSchema creates the tables on first use. A database from another schema
// version is dropped and recreated; its contents are only a cache.
func initSchema(ctx context.Context, db *sql.DB) error {
	var tableExists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists > 0 {
		var version int
		err = db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
		if err == nil && version == schemaVersion {
			return nil
		}
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS kv; DROP TABLE schema_version"); err != nil {
			return fmt.Errorf("drop stale schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("insert schema version: %w", err)
	}
	return tx.Commit()
}

// Enabled reports whether the cache is backed by a database.
func (c *Cache) Enabled() bool {
	return c != nil && c.db != nil
}

// Path returns the database path, or "" for a no-op cache.
func (c *Cache) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Get returns the stored value for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var value []byte
	err := retryOnBusy(context.Background(), func() error {
		return c.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	})
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Debug("local cache read failed", logging.String("key", key), logging.Error(err))
		}
		return nil, false
	}
	return value, true
}

// Put stores value under key, replacing any previous value.
func (c *Cache) Put(key string, value []byte) {
	if !c.Enabled() {
		return
	}
	err := retryOnBusy(context.Background(), func() error {
		_, err := c.db.Exec(
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, time.Now().UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		c.logger.Debug("local cache write failed", logging.String("key", key), logging.Error(err))
	}
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	if !c.Enabled() {
		return
	}
	if err := retryOnBusy(context.Background(), func() error {
		_, err := c.db.Exec("DELETE FROM kv WHERE key = ?", key)
		return err
	}); err != nil {
		c.logger.Debug("local cache delete failed", logging.String("key", key), logging.Error(err))
	}
}

// Close releases the database.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
