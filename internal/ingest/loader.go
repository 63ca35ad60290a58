package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Loader writes a full dataset into the billing tables.
type Loader struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewLoader(db *sqlx.DB, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, logger: logger}
}

// LoadAll reads every table from src and inserts all rows in one transaction,
// parents before children. Existing rows are removed first so a reload is a
// clean replace.
func (l *Loader) LoadAll(ctx context.Context, src Source) (map[string]int, error) {
	tableRows := make(map[string][]map[string]any, len(loadOrder))
	for _, spec := range loadOrder {
		reader, err := src.Open(ctx, spec.name)
		if err != nil {
			return nil, fmt.Errorf("open source for %s: %w", spec.name, err)
		}
		rows, err := readCSV(spec, reader)
		closeErr := reader.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, fmt.Errorf("close source for %s: %w", spec.name, closeErr)
		}
		tableRows[spec.name] = rows
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Children first on delete, parents first on insert.
	for i := len(loadOrder) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+loadOrder[i].name); err != nil {
			return nil, fmt.Errorf("clear %s: %w", loadOrder[i].name, err)
		}
	}

	counts := make(map[string]int, len(loadOrder))
	for _, spec := range loadOrder {
		insert := insertSQL(spec)
		for _, row := range tableRows[spec.name] {
			if _, err := tx.NamedExecContext(ctx, insert, fillMissing(spec, row)); err != nil {
				return nil, fmt.Errorf("insert into %s: %w", spec.name, err)
			}
		}
		counts[spec.name] = len(tableRows[spec.name])
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit load: %w", err)
	}

	for _, spec := range loadOrder {
		l.logger.InfoContext(ctx, "table loaded", "table", spec.name, "rows", counts[spec.name])
	}
	return counts, nil
}

func insertSQL(spec tableSpec) string {
	placeholders := make([]string, len(spec.columns))
	for i, col := range spec.columns {
		placeholders[i] = ":" + col
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		spec.name,
		strings.Join(spec.columns, ", "),
		strings.Join(placeholders, ", "))
}

// fillMissing pads optional columns with nil so named binding always finds
// every placeholder.
func fillMissing(spec tableSpec, row map[string]any) map[string]any {
	for _, col := range spec.columns {
		if _, ok := row[col]; !ok {
			row[col] = nil
		}
	}
	return row
}
