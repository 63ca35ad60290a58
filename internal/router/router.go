// Package router classifies a natural-language question into a structured
// query plan, a clarification request, or a refusal.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tabularqa/tabularqa/internal/llm"
	"github.com/tabularqa/tabularqa/internal/observability"
	"github.com/tabularqa/tabularqa/internal/plan"
)

const routerSystem = `You route questions about a billing database to structured query plans.

The database holds three tables:
clients(client_id, client_name, industry, country)
invoices(invoice_id, client_id, invoice_date, due_date, status, currency, fx_rate_to_usd)
invoice_line_items(line_id, invoice_id, service_name, quantity, unit_price, tax_rate)

Pick exactly one intent:
- LIST_CLIENTS: list all clients.
- CLIENTS_BY_COUNTRY: clients filtered to one country (set country).
- INVOICES_BY_MONTH: invoices in a calendar month (set year and month).
- INVOICES_BY_STATUS: invoices with a given status (set status, e.g. "Paid", "Overdue", "Pending").
- CLIENT_INVOICES: invoices of a named client (set client_name).
- INVOICES_BY_CLIENT_AND_MONTH: invoices of a named client in a month (set client_name, year, month).
- OVERDUE_INVOICES_AS_OF_DATE: invoices overdue relative to a date (set as_of_date).
- INVOICE_LINE_ITEMS: line items of one invoice (set invoice_id).
- LINE_ITEM_COUNT_BY_SERVICE: how many line items each service has.
- CLIENT_TOTAL_BILLED_BY_YEAR: total billed per client in a year (set year).
- TOP_CLIENT_BY_YEAR: single highest-billed client in a year (set year).
- TOP_SERVICES_BY_REVENUE: highest-revenue services (set limit for "top N"; set year if the question names one).
- REVENUE_BY_COUNTRY: revenue grouped by client country (set year if named).
- SERVICE_CLIENT_TOTALS: per-client totals for one service (set service_name).
- TOP_SERVICES_EU_H2: top services for European countries in a second half-year (set start_date, end_date, year; set countries only if specific countries are named, otherwise null).
- FREEFORM_SQL: a readable analytical question no other intent covers.

Slot rules:
- Month names map to numbers ("March" -> 3). year is the four-digit year.
- "as of <date>", "by <date>" set as_of_date in YYYY-MM-DD.
- "H2 2024" sets start_date=2024-07-01, end_date=2024-12-31, year=2024.
- "top N" sets limit=N. limit must stay between 1 and 50.
- "overdue" with a date goes to OVERDUE_INVOICES_AS_OF_DATE; without a date it is INVOICES_BY_STATUS with status "Overdue".
- Keep every unused slot null. Never invent values the question does not state.

Action rules:
- action=QUERY with a full plan when the question is answerable.
- action=CLARIFY with clarifying_question and missing_fields when a required slot is missing or ambiguous (e.g. "show invoices for March" without a year).
- action=REFUSE with refusal_message when the question asks to modify data, asks about data outside these tables, or is not about this database at all.

Respond with a single JSON object conforming to the provided schema. Fill rationale with one short sentence.`

// Router resolves questions to RouterResults, caching plans per session so a
// repeated question skips the model call.
type Router struct {
	client llm.Client
	cache  *PlanCache
	logger *slog.Logger
}

func New(client llm.Client, cache *PlanCache, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{client: client, cache: cache, logger: logger}
}

// Route returns the routing decision for question. Cached QUERY results are
// reused within a session; CLARIFY and REFUSE are never cached.
func (r *Router) Route(ctx context.Context, sessionID, question string) (plan.RouterResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return plan.RouterResult{}, &plan.SchemaError{Reason: "empty question"}
	}

	if r.cache != nil {
		if cached, ok := r.cache.Get(sessionID, question); ok {
			r.logger.DebugContext(ctx, "plan cache hit", "session", sessionID)
			return cached, nil
		}
	}

	start := time.Now()
	raw, err := r.client.JSON(ctx, routerSystem, question, "router_result", plan.RouterResultSchema())
	observability.ObserveModelCall("route", time.Since(start))
	if err != nil {
		return plan.RouterResult{}, fmt.Errorf("route question: %w", err)
	}

	result, err := plan.DecodeRouterResult(raw)
	if err != nil {
		return plan.RouterResult{}, err
	}

	if r.cache != nil && result.Action == plan.ActionQuery {
		r.cache.Put(sessionID, question, result)
	}
	return result, nil
}
