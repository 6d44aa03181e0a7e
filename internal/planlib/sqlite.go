// ABOUTME: SQLite plan library using modernc.org/sqlite or mattn/go-sqlite3
// ABOUTME: Plans are stored as JSON rows upserted by desire fingerprint

package planlib

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/2389/coven-bdi/internal/bdi"
)

// Driver names accepted by Open.
const (
	DriverModernc = "sqlite"  // pure Go
	DriverCGO     = "sqlite3" // mattn/go-sqlite3, requires cgo
)

// SQLiteLibrary implements Library on a SQLite database file.
type SQLiteLibrary struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the plan library at path using the named driver.
// Parent directories are created if needed.
func Open(driver, path string) (*SQLiteLibrary, error) {
	logger := slog.Default().With("component", "planlib")

	switch driver {
	case DriverModernc, DriverCGO:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating plan library directory: %w", err)
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening plan library: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &SQLiteLibrary{
		db:     db,
		path:   path,
		logger: logger,
	}

	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := l.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("plan library opened", "path", path, "driver", driver)
	return l, nil
}

func (l *SQLiteLibrary) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS plans (
			fingerprint TEXT PRIMARY KEY,
			desire_name TEXT NOT NULL,
			plan_json   TEXT NOT NULL,
			actions     INTEGER NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_plans_desire_name ON plans(desire_name);
	`
	_, err := l.db.Exec(schema)
	return err
}

// runMigrations applies additive column changes to existing databases.
func (l *SQLiteLibrary) runMigrations() error {
	migrations := []struct {
		check  string
		apply  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('plans') WHERE name = 'hits'`,
			apply:  `ALTER TABLE plans ADD COLUMN hits INTEGER NOT NULL DEFAULT 0`,
			column: "hits",
		},
	}

	for _, m := range migrations {
		var exists int
		if err := l.db.QueryRow(m.check).Scan(&exists); err == nil {
			continue
		}
		if _, err := l.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to plans: %w", m.column, err)
		}
		l.logger.Info("applied migration", "column", m.column, "table", "plans")
	}
	return nil
}

// Path returns the database file path.
func (l *SQLiteLibrary) Path() string {
	return l.path
}

// Insert upserts plan under its desire fingerprint.
func (l *SQLiteLibrary) Insert(ctx context.Context, plan bdi.Plan) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLibraryClosed
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO plans (fingerprint, desire_name, plan_json, actions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			desire_name = excluded.desire_name,
			plan_json   = excluded.plan_json,
			actions     = excluded.actions,
			updated_at  = excluded.updated_at
	`, string(plan.Fingerprint()), plan.Desire.Name, string(data), len(plan.Actions), now, now)
	if err != nil {
		return fmt.Errorf("inserting plan: %w", err)
	}
	return nil
}

// Lookup returns the plan stored for key.
func (l *SQLiteLibrary) Lookup(ctx context.Context, key bdi.Fingerprint) (bdi.Plan, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return bdi.Plan{}, false, ErrLibraryClosed
	}

	var data string
	err := l.db.QueryRowContext(ctx,
		`SELECT plan_json FROM plans WHERE fingerprint = ?`, string(key)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return bdi.Plan{}, false, nil
	}
	if err != nil {
		return bdi.Plan{}, false, fmt.Errorf("looking up plan: %w", err)
	}

	var plan bdi.Plan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return bdi.Plan{}, false, fmt.Errorf("decoding plan: %w", err)
	}

	if _, err := l.db.ExecContext(ctx,
		`UPDATE plans SET hits = hits + 1 WHERE fingerprint = ?`, string(key)); err != nil {
		l.logger.Debug("failed to count plan hit", "error", err)
	}
	return plan, true, nil
}

// List returns every stored plan, most recently updated first.
func (l *SQLiteLibrary) List(ctx context.Context) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrLibraryClosed
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT fingerprint, desire_name, actions, hits, updated_at
		FROM plans ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			fp      string
			updated string
		)
		if err := rows.Scan(&fp, &e.DesireName, &e.Actions, &e.Hits, &updated); err != nil {
			return nil, fmt.Errorf("scanning plan row: %w", err)
		}
		e.Fingerprint = bdi.Fingerprint(fp)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the plan stored for key.
func (l *SQLiteLibrary) Delete(ctx context.Context, key bdi.Fingerprint) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLibraryClosed
	}
	if _, err := l.db.ExecContext(ctx, `DELETE FROM plans WHERE fingerprint = ?`, string(key)); err != nil {
		return fmt.Errorf("deleting plan: %w", err)
	}
	return nil
}

// Close closes the database. It is safe to call multiple times.
func (l *SQLiteLibrary) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}
