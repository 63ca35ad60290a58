// Package sqlrun executes validated SQL against the business database and
// returns rows in a transport-neutral shape.
package sqlrun

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tabularqa/tabularqa/internal/observability"
	"github.com/tabularqa/tabularqa/internal/sqlsafety"
)

// ExecutionError wraps a database failure so callers can distinguish it from
// validation failures. The underlying driver message is preserved verbatim
// for repair prompting.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("sql execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Result is the outcome of one successful execution.
type Result struct {
	SQL      string
	Params   map[string]any
	Rows     []map[string]any
	RowCount int
	Elapsed  time.Duration
}

// Agent runs queries with the safety gate applied immediately before
// execution, regardless of which path produced the SQL.
type Agent struct {
	db     *sqlx.DB
	safety sqlsafety.Config
	logger *slog.Logger
}

func NewAgent(db *sqlx.DB, safety sqlsafety.Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{db: db, safety: safety, logger: logger}
}

// Run enforces the safety rules on sql, binds the named params, and executes
// the result. Safety failures come back as *sqlsafety.Error, database
// failures as *ExecutionError.
func (a *Agent) Run(ctx context.Context, sql string, params map[string]any) (*Result, error) {
	safe, err := sqlsafety.Enforce(sql, a.safety)
	if err != nil {
		return nil, err
	}

	if params == nil {
		params = map[string]any{}
	}
	bound, args, err := sqlx.Named(safe, params)
	if err != nil {
		return nil, &ExecutionError{SQL: safe, Err: fmt.Errorf("bind params: %w", err)}
	}
	bound = a.db.Rebind(bound)

	start := time.Now()
	rows, err := a.db.QueryxContext(ctx, bound, args...)
	if err != nil {
		return nil, &ExecutionError{SQL: safe, Err: err}
	}
	defer rows.Close()

	collected := make([]map[string]any, 0, 16)
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, &ExecutionError{SQL: safe, Err: err}
		}
		collected = append(collected, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{SQL: safe, Err: err}
	}

	elapsed := time.Since(start)
	observability.ObserveSQLQuery(elapsed)
	a.logger.DebugContext(ctx, "query executed", "rows", len(collected), "elapsed", elapsed)

	return &Result{
		SQL:      safe,
		Params:   params,
		Rows:     collected,
		RowCount: len(collected),
		Elapsed:  elapsed,
	}, nil
}
