package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/openfroyo/recwire/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a separate database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RecordRun stores a compile run with its plans, failures and diagnostics
// in one transaction. A run without an ID is given a random one.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *engine.CompileRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, status, started_at, duration_ms, components, emitted, failed, primitives, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Source,
		StatusOf(run.Summary),
		run.StartedAt.UTC(),
		run.Summary.Duration.Milliseconds(),
		run.Summary.Components,
		run.Summary.Emitted,
		run.Summary.Failed,
		run.Summary.Primitives,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	for i, plan := range run.Plans {
		body, err := json.Marshal(plan)
		if err != nil {
			return fmt.Errorf("failed to encode plan %s: %w", plan.Instance.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO plans (run_id, component_id, plan_id, position, body)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, plan.Instance.ID, plan.ID, i, string(body))
		if err != nil {
			return fmt.Errorf("failed to store plan %s: %w", plan.Instance.ID, err)
		}

		for _, d := range plan.Diagnostics {
			var field *string
			if d.Field != "" {
				field = &d.Field
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO diagnostics (run_id, component_id, severity, source, field, message)
				VALUES (?, ?, ?, ?, ?, ?)
			`, run.ID, plan.Instance.ID, d.Severity, d.Source, field, d.Message)
			if err != nil {
				return fmt.Errorf("failed to store diagnostic: %w", err)
			}
		}
	}

	components := make([]string, 0, len(run.Failures))
	for id := range run.Failures {
		components = append(components, id)
	}
	sort.Strings(components)

	for _, id := range components {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO failures (run_id, component_id, message)
			VALUES (?, ?, ?)
		`, run.ID, id, run.Failures[id])
		if err != nil {
			return fmt.Errorf("failed to store failure for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, source, status, started_at, duration_ms, components, emitted, failed, primitives, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var durationMS int64
	err := row.Scan(
		&run.ID,
		&run.Source,
		&run.Status,
		&run.StartedAt,
		&durationMS,
		&run.Summary.Components,
		&run.Summary.Emitted,
		&run.Summary.Failed,
		&run.Summary.Primitives,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Summary.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns lists runs, newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run and everything recorded with it
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	return nil
}

// PruneRuns deletes all but the newest keep runs and returns how many were removed.
func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative")
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, created_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	return result.RowsAffected()
}

// ListPlans returns the plans of a run in emission order
func (s *SQLiteStore) ListPlans(ctx context.Context, runID string) ([]*PlanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT component_id, body
		FROM plans
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	records := []*PlanRecord{}
	for rows.Next() {
		rec := &PlanRecord{RunID: runID}
		var body string
		if err := rows.Scan(&rec.ComponentID, &body); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &rec.Plan); err != nil {
			return nil, fmt.Errorf("failed to decode plan %s: %w", rec.ComponentID, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	return records, nil
}

// ListFailures returns the failed components of a run, sorted by ID
func (s *SQLiteStore) ListFailures(ctx context.Context, runID string) ([]*Failure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT component_id, message
		FROM failures
		WHERE run_id = ?
		ORDER BY component_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer rows.Close()

	failures := []*Failure{}
	for rows.Next() {
		f := &Failure{RunID: runID}
		if err := rows.Scan(&f.ComponentID, &f.Message); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failures: %w", err)
	}

	return failures, nil
}

// ListDiagnostics returns the diagnostics of a run, optionally filtered by severity
func (s *SQLiteStore) ListDiagnostics(ctx context.Context, runID string, severity *engine.Severity) ([]*DiagnosticRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, component_id, severity, source, field, message
		FROM diagnostics
		WHERE run_id = ?
		  AND (? IS NULL OR severity = ?)
		ORDER BY id
	`, runID, severity, severity)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostics: %w", err)
	}
	defer rows.Close()

	records := []*DiagnosticRecord{}
	for rows.Next() {
		rec := &DiagnosticRecord{RunID: runID}
		var field sql.NullString
		err := rows.Scan(
			&rec.ID,
			&rec.ComponentID,
			&rec.Diagnostic.Severity,
			&rec.Diagnostic.Source,
			&field,
			&rec.Diagnostic.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		rec.Diagnostic.Field = field.String
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diagnostics: %w", err)
	}

	return records, nil
}

// HealthCheck verifies the database is reachable
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
