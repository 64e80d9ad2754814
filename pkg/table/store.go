package table

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"centerlinemetrics/internal/models"
)

// schema.sql creates the run and value tables used by Store
//
//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned by LoadRun for unknown run IDs
var ErrRunNotFound = errors.New("run not found")

// Run is one extraction persisted in a Store
type Run struct {
	ID        string
	Name      string
	Mode      models.DistanceMode
	Axis      models.Axis
	CreatedAt time.Time
	Table     *Table
}

// Store keeps extraction runs in a SQLite database
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores run and returns its ID. A new ID is generated when
// run.ID is empty and CreatedAt defaults to now.
func (s *Store) SaveRun(ctx context.Context, run *Run) (string, error) {
	if run.Table == nil {
		return "", errors.New("run has no table")
	}
	if err := run.Table.Validate(); err != nil {
		return "", err
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO metric_runs (run_id, name, distance_mode, axis, row_count, created_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Name, run.Mode.String(), int(run.Axis), run.Table.NumRows(), run.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metric_values (run_id, column_idx, column_name, row_idx, value)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare values: %w", err)
	}
	defer stmt.Close()

	for ci, c := range run.Table.Columns {
		for ri, v := range c.Values {
			if _, err := stmt.ExecContext(ctx, run.ID, ci, c.Name, ri, v); err != nil {
				return "", fmt.Errorf("insert value %s[%d]: %w", c.Name, ri, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return run.ID, nil
}

// LoadRun reads the run with the given ID, including its table
func (s *Store) LoadRun(ctx context.Context, id string) (*Run, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx, `
		SELECT run_id, name, distance_mode, axis, created_unix_nanos
		FROM metric_runs WHERE run_id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT column_idx, column_name, row_idx, value
		FROM metric_values WHERE run_id = ?
		ORDER BY column_idx, row_idx
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer rows.Close()

	run.Table = New(run.Name)
	for rows.Next() {
		var (
			colIdx, rowIdx int
			colName        string
			value          float64
		)
		if err := rows.Scan(&colIdx, &colName, &rowIdx, &value); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		col := run.Table.EnsureColumn(colName)
		if rowIdx != len(col.Values) {
			return nil, fmt.Errorf("run %s column %q: missing row %d", id, colName, len(col.Values))
		}
		col.Values = append(col.Values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values: %w", err)
	}
	return run, nil
}

// ListRuns returns every stored run, newest first, without tables
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, name, distance_mode, axis, created_unix_nanos
		FROM metric_runs ORDER BY created_unix_nanos DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its values
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// foreign_keys is per connection, so values are not left to the cascade
	if _, err := tx.ExecContext(ctx, `DELETE FROM metric_values WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("delete values: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM metric_runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRun(row scanner) (*Run, error) {
	var (
		run     Run
		mode    string
		axis    int
		created int64
	)
	if err := row.Scan(&run.ID, &run.Name, &mode, &axis, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	m, err := models.ParseDistanceMode(mode)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.Mode = m
	run.Axis = models.Axis(axis)

	run.CreatedAt = time.Unix(0, created).UTC()
	return &run, nil
}
