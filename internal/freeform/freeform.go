// Package freeform generates SQL from natural language for questions no
// deterministic template covers. Every generated statement must pass the
// safety gate before it is considered usable.
package freeform

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tabularqa/tabularqa/internal/llm"
	"github.com/tabularqa/tabularqa/internal/observability"
	"github.com/tabularqa/tabularqa/internal/sqlsafety"
)

// schemaText is the only schema description the model sees. Keep it in sync
// with internal/store/schema.sql.
const schemaText = `Tables:
clients(client_id, client_name, industry, country)
invoices(invoice_id, client_id, invoice_date, due_date, status, currency, fx_rate_to_usd)
invoice_line_items(line_id, invoice_id, service_name, quantity, unit_price, tax_rate)

Joins:
invoices.client_id = clients.client_id
invoice_line_items.invoice_id = invoices.invoice_id

Line totals including tax: (quantity * unit_price) * (1 + tax_rate)`

const generateSystem = `You are an expert SQL generator for a billing analytics database.

` + schemaText + `

Rules:
- Output exactly one SELECT statement and nothing else. No markdown, no commentary.
- Only read data. Never write, alter, or drop anything.
- Only use the tables listed above.
- Dates are ISO format (YYYY-MM-DD). Use YEAR(col) and MONTH(col) for calendar filters.
- Prefer explicit column lists over SELECT *.
- Use ORDER BY so results are deterministic.`

const repairSystem = `You previously generated a SQL statement for a billing analytics database and it failed.

` + schemaText + `

You will be given the original question, the failing SQL, and the error.
Return a corrected single SELECT statement and nothing else. No markdown, no commentary.
Only read data, only from the tables listed above.`

// Result carries both the model's raw output and the safety-approved form
// that actually runs.
type Result struct {
	RawSQL  string
	SafeSQL string
}

// Generator produces and repairs freeform SQL.
type Generator struct {
	client llm.Client
	safety sqlsafety.Config
	logger *slog.Logger
}

func NewGenerator(client llm.Client, safety sqlsafety.Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, safety: safety, logger: logger}
}

// Generate asks the model for SQL answering question and validates it.
func (g *Generator) Generate(ctx context.Context, question string) (*Result, error) {
	start := time.Now()
	raw, err := g.client.Text(ctx, generateSystem, question)
	observability.ObserveModelCall("freeform_generate", time.Since(start))
	if err != nil {
		return nil, err
	}
	return g.validate(ctx, raw)
}

// Repair asks the model to fix failedSQL given the execution error and
// validates the replacement. Callers allow at most one repair per request.
func (g *Generator) Repair(ctx context.Context, question, failedSQL, execErr string) (*Result, error) {
	observability.ObserveRepairAttempt()

	var user strings.Builder
	user.WriteString("Question: ")
	user.WriteString(question)
	user.WriteString("\n\nFailing SQL:\n")
	user.WriteString(failedSQL)
	user.WriteString("\n\nError:\n")
	user.WriteString(execErr)

	start := time.Now()
	raw, err := g.client.Text(ctx, repairSystem, user.String())
	observability.ObserveModelCall("freeform_repair", time.Since(start))
	if err != nil {
		return nil, err
	}
	return g.validate(ctx, raw)
}

func (g *Generator) validate(ctx context.Context, raw string) (*Result, error) {
	cleaned := stripMarkdownSQL(raw)
	safe, err := sqlsafety.Enforce(cleaned, g.safety)
	if err != nil {
		g.logger.WarnContext(ctx, "generated SQL rejected", "reason", err)
		return nil, err
	}
	return &Result{RawSQL: raw, SafeSQL: safe}, nil
}

// stripMarkdownSQL removes a ```sql fence if the model wrapped its answer in
// one despite instructions.
func stripMarkdownSQL(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```sql")
	trimmed = strings.TrimPrefix(trimmed, "```SQL")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
