package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	_ "modernc.org/sqlite"
)

// CooldownStore keeps cooldown entries in SQLite so they survive restarts.
type CooldownStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenCooldownStore opens or creates the SQLite database at path.
func OpenCooldownStore(path string) (*CooldownStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageOpenFailed, "failed to create cooldown directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageOpenFailed, "failed to open cooldown store", err)
	}

	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStorageOpenFailed, "failed to set WAL mode", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cooldowns (
		symbol     TEXT PRIMARY KEY,
		entry_date INTEGER NOT NULL,
		exit_date  INTEGER NOT NULL,
		reason     TEXT
	)`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeMigrationFailed, "failed to create cooldowns table", err)
	}

	return &CooldownStore{db: db, mu: sync.Mutex{}}, nil
}

// Close releases the database.
func (c *CooldownStore) Close() error {
	return c.db.Close()
}

// Upsert stores an entry, replacing any earlier one for the symbol.
func (c *CooldownStore) Upsert(ctx context.Context, entry types.CooldownEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cooldowns (symbol, entry_date, exit_date, reason) VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			entry_date = excluded.entry_date,
			exit_date = excluded.exit_date,
			reason = excluded.reason`,
		entry.Symbol, entry.Start.UnixMilli(), entry.Expiry.UnixMilli(), entry.Reason)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageWriteFailed, err, "failed to store cooldown for %s", entry.Symbol)
	}

	return nil
}

// Delete drops the entry of a symbol. Deleting a missing entry is not an error.
func (c *CooldownStore) Delete(ctx context.Context, symbol string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM cooldowns WHERE symbol = ?`, symbol); err != nil {
		return errors.Wrapf(errors.ErrCodeStorageWriteFailed, err, "failed to delete cooldown for %s", symbol)
	}

	return nil
}

// Active returns the entries that have not expired at now, soonest expiry first.
// Expired rows are pruned.
func (c *CooldownStore) Active(ctx context.Context, now time.Time) ([]types.CooldownEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM cooldowns WHERE exit_date <= ?`, now.UnixMilli()); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to prune expired cooldowns", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT symbol, entry_date, exit_date, reason FROM cooldowns ORDER BY exit_date ASC, symbol ASC`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query cooldowns", err)
	}
	defer rows.Close()

	var entries []types.CooldownEntry

	for rows.Next() {
		var (
			symbol      string
			start, exit int64
			reason      sql.NullString
		)

		if err := rows.Scan(&symbol, &start, &exit, &reason); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan cooldown", err)
		}

		entries = append(entries, types.CooldownEntry{
			Symbol: symbol,
			Reason: reason.String,
			Start:  time.UnixMilli(start).UTC(),
			Expiry: time.UnixMilli(exit).UTC(),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read cooldowns", err)
	}

	return entries, nil
}

// Reset drops every entry.
func (c *CooldownStore) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM cooldowns`); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to reset cooldowns", err)
	}

	return nil
}
