package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tabularqa/tabularqa/internal/history"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// EnsureSchema creates the history table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS chat_request (
    id BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL,
    question TEXT NOT NULL,
    action TEXT NOT NULL,
    intent TEXT NOT NULL DEFAULT '',
    mode TEXT NOT NULL DEFAULT '',
    sql_text TEXT NOT NULL DEFAULT '',
    row_count INTEGER NOT NULL DEFAULT 0,
    repaired BOOLEAN NOT NULL DEFAULT FALSE,
    grounded BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

func (r *Repository) Record(ctx context.Context, entry history.Entry) (history.Entry, error) {
	query := `
INSERT INTO chat_request (session_id, question, action, intent, mode, sql_text, row_count, repaired, grounded)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query,
		entry.SessionID,
		entry.Question,
		entry.Action,
		entry.Intent,
		entry.Mode,
		entry.SQL,
		entry.RowCount,
		entry.Repaired,
		entry.Grounded,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return history.Entry{}, fmt.Errorf("record chat request: %w", err)
	}
	return entry, nil
}

// ListRecent returns the newest entries, optionally filtered to one session.
func (r *Repository) ListRecent(ctx context.Context, sessionID string, limit int) ([]history.Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
SELECT id, session_id, question, action, intent, mode, sql_text, row_count, repaired, grounded, created_at
FROM chat_request`
	args := []any{}
	if sessionID != "" {
		query += `
WHERE session_id = $1`
		args = append(args, sessionID)
	}
	query += fmt.Sprintf(`
ORDER BY id DESC
LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]history.Entry, 0)
	for rows.Next() {
		var entry history.Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.Question,
			&entry.Action,
			&entry.Intent,
			&entry.Mode,
			&entry.SQL,
			&entry.RowCount,
			&entry.Repaired,
			&entry.Grounded,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat request: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat requests: %w", err)
	}
	return entries, nil
}
