package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// Row is one storage row as column name -> value.
type Row map[string]any

// Store is the only surface the pipeline requires from the storage layer:
// idempotent upserts keyed on a uniqueness constraint, and counts. It must
// not assume SQL features beyond that.
type Store interface {
	Upsert(ctx context.Context, table string, rows []Row, conflictKey string) error
	Count(ctx context.Context, table string, filter map[string]any) (int, error)
}

// errConstraint marks apply failures that retrying cannot fix.
var errConstraint = errors.New("constraint violation")

// isRetryableApplyErr reports whether an apply failure is worth another
// attempt. Constraint violations (Postgres class 23) and malformed-batch
// errors are fatal to the batch; everything else is treated as transient.
func isRetryableApplyErr(err error) bool {
	if errors.Is(err, errConstraint) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return false
	}
	return true
}

// PostgresStore implements Store plus the verifier's read-only checks on a
// plain database/sql handle.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert inserts rows into table, overwriting the non-key columns on
// conflict with conflictKey (a comma-separated column list). Re-running the
// same rows is a no-op beyond timestamps.
func (s *PostgresStore) Upsert(ctx context.Context, table string, rows []Row, conflictKey string) error {
	if len(rows) == 0 {
		return nil
	}

	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	keyCols := map[string]bool{}
	for _, col := range strings.Split(conflictKey, ",") {
		keyCols[strings.TrimSpace(col)] = true
	}

	var (
		quoted       = make([]string, len(columns))
		placeholders = make([]string, 0, len(rows))
		args         = make([]any, 0, len(rows)*len(columns))
		updates      []string
	)
	for i, col := range columns {
		quoted[i] = pq.QuoteIdentifier(col)
		if !keyCols[col] {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoted[i], quoted[i]))
		}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d has %d columns, want %d: %w", i, len(row), len(columns), errConstraint)
		}
		marks := make([]string, len(columns))
		for j, col := range columns {
			val, ok := row[col]
			if !ok {
				return fmt.Errorf("row %d is missing column %q: %w", i, col, errConstraint)
			}
			args = append(args, val)
			marks[j] = fmt.Sprintf("$%d", len(args))
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s",
		pq.QuoteIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		conflictKey,
		strings.Join(updates, ", "),
	)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert into %s failed: %w", table, err)
	}
	return nil
}

// Count returns the row count of table, optionally filtered by equality on
// the given columns.
func (s *PostgresStore) Count(ctx context.Context, table string, filter map[string]any) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(table))

	var args []any
	if len(filter) > 0 {
		cols := make([]string, 0, len(filter))
		for col := range filter {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		conds := make([]string, len(cols))
		for i, col := range cols {
			args = append(args, filter[col])
			conds[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), len(args))
		}
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s failed: %w", table, err)
	}
	return count, nil
}

// DanglingInteractions counts interaction rows whose supplement_id or
// medication_id has no matching catalog row. Healthy imports have zero.
func (s *PostgresStore) DanglingInteractions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM interactions i
		LEFT JOIN supplements s ON s.id = i.supplement_id
		LEFT JOIN medications m ON m.id = i.medication_id
		WHERE s.id IS NULL OR m.id IS NULL
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("dangling foreign key check failed: %w", err)
	}
	return count, nil
}

// DuplicatePairs counts (supplement_id, medication_id) pairs holding more
// than one interaction row. Non-zero means the reconciler's dedup was
// bypassed or a concurrent writer raced the import.
func (s *PostgresStore) DuplicatePairs(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM (
			SELECT supplement_id, medication_id
			FROM interactions
			GROUP BY supplement_id, medication_id
			HAVING COUNT(*) > 1
		) dup
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("duplicate pair check failed: %w", err)
	}
	return count, nil
}

// SeverityCounts returns the interaction count per severity value.
func (s *PostgresStore) SeverityCounts(ctx context.Context) (map[Severity]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM interactions GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("severity distribution query failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[Severity]int)
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, err
		}
		counts[Severity(sev)] = n
	}
	return counts, rows.Err()
}
