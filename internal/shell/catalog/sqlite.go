package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Types
// =============================================================================

// Outcome is the result of a lifecycle operation.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Operation is one recorded lifecycle operation.
type Operation struct {
	ID         string
	Stack      string
	Operation  string
	Outcome    Outcome
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// StackEntry is a catalog row mapping a stack name to its config file.
type StackEntry struct {
	Name       string
	ConfigPath string
	UpdatedAt  time.Time
}

// =============================================================================
// SQLiteCatalog
// =============================================================================

// SQLiteCatalog implements the catalog on SQLite.
type SQLiteCatalog struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the catalog at dsn and runs migrations.
// Use ":memory:" for an ephemeral catalog.
func Open(dsn string) (*SQLiteCatalog, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, NewCatalogError("Open", "", err.Error(), ErrConnectionFailed)
		}
	}

	db, err := sqlx.Open("sqlite3", dsn+"?_busy_timeout=5000")
	if err != nil {
		return nil, NewCatalogError("Open", "", "failed to open database", ErrConnectionFailed)
	}
	// A single connection keeps ":memory:" databases shared across queries
	// and serializes writers from this process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewCatalogError("Open", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewCatalogError("Open", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteCatalog{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

// =============================================================================
// Stack Metadata
// =============================================================================

type stackRow struct {
	Name       string `db:"name"`
	ConfigPath string `db:"config_path"`
	UpdatedAt  string `db:"updated_at"`
}

// RecordStack upserts the config path for a stack name.
func (c *SQLiteCatalog) RecordStack(ctx context.Context, name, configPath string) error {
	_, err := c.db.NamedExecContext(ctx, `
		INSERT INTO stacks (name, config_path, updated_at)
		VALUES (:name, :config_path, :updated_at)
		ON CONFLICT(name) DO UPDATE SET
			config_path = excluded.config_path,
			updated_at = excluded.updated_at`,
		stackRow{
			Name:       name,
			ConfigPath: configPath,
			UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
		})
	if err != nil {
		return NewCatalogError("RecordStack", name, err.Error(), ErrQueryFailed)
	}
	return nil
}

// LookupStack returns the config path recorded for name.
func (c *SQLiteCatalog) LookupStack(ctx context.Context, name string) (string, error) {
	var row stackRow
	err := c.db.GetContext(ctx, &row, `SELECT name, config_path, updated_at FROM stacks WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", NewCatalogError("LookupStack", name, "not found", ErrNotFound)
	}
	if err != nil {
		return "", NewCatalogError("LookupStack", name, err.Error(), ErrQueryFailed)
	}
	return row.ConfigPath, nil
}

// ListStacks returns every catalog entry ordered by name.
func (c *SQLiteCatalog) ListStacks(ctx context.Context) ([]StackEntry, error) {
	var rows []stackRow
	if err := c.db.SelectContext(ctx, &rows, `SELECT name, config_path, updated_at FROM stacks ORDER BY name`); err != nil {
		return nil, NewCatalogError("ListStacks", "", err.Error(), ErrQueryFailed)
	}
	out := make([]StackEntry, 0, len(rows))
	for _, r := range rows {
		updated, _ := time.Parse(time.RFC3339, r.UpdatedAt)
		out = append(out, StackEntry{Name: r.Name, ConfigPath: r.ConfigPath, UpdatedAt: updated})
	}
	return out, nil
}

// ForgetStack removes the catalog entry for name. Absent names are ignored.
func (c *SQLiteCatalog) ForgetStack(ctx context.Context, name string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM stacks WHERE name = ?`, name); err != nil {
		return NewCatalogError("ForgetStack", name, err.Error(), ErrQueryFailed)
	}
	return nil
}

// =============================================================================
// Operation History
// =============================================================================

// timeLayout is fixed-width so started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type operationRow struct {
	ID         string         `db:"id"`
	Stack      string         `db:"stack"`
	Operation  string         `db:"operation"`
	Outcome    string         `db:"outcome"`
	Error      sql.NullString `db:"error"`
	StartedAt  string         `db:"started_at"`
	FinishedAt string         `db:"finished_at"`
}

// RecordOperation appends op to the history. An empty ID is generated.
func (c *SQLiteCatalog) RecordOperation(ctx context.Context, op Operation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	row := operationRow{
		ID:         op.ID,
		Stack:      op.Stack,
		Operation:  op.Operation,
		Outcome:    string(op.Outcome),
		Error:      sql.NullString{String: op.Error, Valid: op.Error != ""},
		StartedAt:  op.StartedAt.UTC().Format(timeLayout),
		FinishedAt: op.FinishedAt.UTC().Format(timeLayout),
	}
	_, err := c.db.NamedExecContext(ctx, `
		INSERT INTO operations (id, stack, operation, outcome, error, started_at, finished_at)
		VALUES (:id, :stack, :operation, :outcome, :error, :started_at, :finished_at)`, row)
	if err != nil {
		return NewCatalogError("RecordOperation", op.Stack, err.Error(), ErrQueryFailed)
	}
	return nil
}

// History returns the most recent operations for stack, newest first.
// A limit <= 0 defaults to 20.
func (c *SQLiteCatalog) History(ctx context.Context, stack string, limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []operationRow
	err := c.db.SelectContext(ctx, &rows, `
		SELECT id, stack, operation, outcome, error, started_at, finished_at
		FROM operations WHERE stack = ?
		ORDER BY started_at DESC, rowid DESC LIMIT ?`, stack, limit)
	if err != nil {
		return nil, NewCatalogError("History", stack, err.Error(), ErrQueryFailed)
	}

	out := make([]Operation, 0, len(rows))
	for _, r := range rows {
		started, _ := time.Parse(time.RFC3339Nano, r.StartedAt)
		finished, _ := time.Parse(time.RFC3339Nano, r.FinishedAt)
		out = append(out, Operation{
			ID:         r.ID,
			Stack:      r.Stack,
			Operation:  r.Operation,
			Outcome:    Outcome(r.Outcome),
			Error:      r.Error.String,
			StartedAt:  started,
			FinishedAt: finished,
		})
	}
	return out, nil
}
