// Package sqlbuild turns a routed QueryPlan into parameterized SQL. Every
// user-influenced value is bound through a named placeholder; the only inline
// substitution is a server-side clamped LIMIT count, which the dialect cannot
// bind as a parameter.
package sqlbuild

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tabularqa/tabularqa/internal/plan"
)

// BuiltSQL pairs a SQL string using :name placeholders with the values bound
// to them. Every placeholder has a param and every param a placeholder.
type BuiltSQL struct {
	SQL    string
	Params map[string]any
}

// UnsupportedIntentError marks a plan whose intent has no deterministic
// template. The orchestrator falls back to freeform generation on it.
type UnsupportedIntentError struct {
	Intent plan.Intent
}

func (e *UnsupportedIntentError) Error() string {
	return fmt.Sprintf("unsupported intent: %s", e.Intent)
}

// MissingSlotError marks a plan that routed to a known intent without the
// slots its template needs. Also recoverable via the freeform fallback.
type MissingSlotError struct {
	Intent plan.Intent
	Slot   string
}

func (e *MissingSlotError) Error() string {
	return fmt.Sprintf("intent %s requires slot %s", e.Intent, e.Slot)
}

type builderFunc func(p plan.QueryPlan) (BuiltSQL, error)

var builders = map[plan.Intent]builderFunc{
	plan.IntentListClients:             buildListClients,
	plan.IntentClientsByCountry:        buildClientsByCountry,
	plan.IntentInvoicesByMonth:         buildInvoicesByMonth,
	plan.IntentInvoicesByStatus:        buildInvoicesByStatus,
	plan.IntentClientInvoices:          buildClientInvoices,
	plan.IntentInvoicesByClientAndMonth: buildInvoicesByClientAndMonth,
	plan.IntentOverdueInvoicesAsOfDate: buildOverdueInvoicesAsOfDate,
	plan.IntentInvoiceLineItems:        buildInvoiceLineItems,
	plan.IntentLineItemCountByService:  buildLineItemCountByService,
	plan.IntentClientTotalBilledByYear: buildClientTotalBilledByYear,
	plan.IntentTopClientByYear:         buildTopClientByYear,
	plan.IntentTopServicesByRevenue:    buildTopServicesByRevenue,
	plan.IntentRevenueByCountry:        buildRevenueByCountry,
	plan.IntentServiceClientTotals:     buildServiceClientTotals,
	plan.IntentTopServicesEUH2:         buildTopServicesEUH2,
}

// lineTotal is the tax-inclusive line total. Every revenue template must use
// this exact formula so that aggregated figures match across intents.
const lineTotal = "(li.quantity * li.unit_price) * (1 + li.tax_rate)"

// defaultEUCountries backs TOP_SERVICES_EU_H2 when the question names no
// specific countries.
var defaultEUCountries = []string{
	"Austria", "Belgium", "Denmark", "Finland", "France", "Germany",
	"Ireland", "Italy", "Netherlands", "Poland", "Portugal", "Spain", "Sweden",
}

// Build maps the plan to its deterministic template. It is pure: the same
// plan always yields byte-identical SQL and params.
func Build(p plan.QueryPlan) (BuiltSQL, error) {
	builder, ok := builders[p.Intent]
	if !ok {
		return BuiltSQL{}, &UnsupportedIntentError{Intent: p.Intent}
	}
	return builder(p)
}

func buildListClients(plan.QueryPlan) (BuiltSQL, error) {
	return BuiltSQL{
		SQL:    "SELECT client_id, client_name, industry, country FROM clients ORDER BY client_name",
		Params: map[string]any{},
	}, nil
}

func buildClientsByCountry(p plan.QueryPlan) (BuiltSQL, error) {
	if p.Country == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "country"}
	}
	return BuiltSQL{
		SQL:    "SELECT client_id, client_name, industry, country FROM clients WHERE country = :country ORDER BY client_name",
		Params: map[string]any{"country": *p.Country},
	}, nil
}

func buildInvoicesByMonth(p plan.QueryPlan) (BuiltSQL, error) {
	if p.Year == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "year"}
	}
	if p.Month == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "month"}
	}
	return BuiltSQL{
		SQL: "SELECT invoice_id, client_id, invoice_date, due_date, status, currency FROM invoices " +
			"WHERE YEAR(invoice_date) = :year AND MONTH(invoice_date) = :month " +
			"ORDER BY invoice_date, invoice_id",
		Params: map[string]any{"year": *p.Year, "month": *p.Month},
	}, nil
}

func buildInvoicesByStatus(p plan.QueryPlan) (BuiltSQL, error) {
	if p.Status == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "status"}
	}
	return BuiltSQL{
		SQL: "SELECT invoice_id, client_id, invoice_date, due_date, status, currency FROM invoices " +
			"WHERE status = :status ORDER BY due_date, invoice_id",
		Params: map[string]any{"status": *p.Status},
	}, nil
}

func buildClientInvoices(p plan.QueryPlan) (BuiltSQL, error) {
	if p.ClientName == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "client_name"}
	}
	return BuiltSQL{
		SQL: "SELECT i.invoice_id, i.invoice_date, i.due_date, i.status, i.currency FROM invoices i " +
			"JOIN clients c ON c.client_id = i.client_id " +
			"WHERE c.client_name = :client_name " +
			"ORDER BY i.invoice_date, i.invoice_id",
		Params: map[string]any{"client_name": *p.ClientName},
	}, nil
}

func buildInvoicesByClientAndMonth(p plan.QueryPlan) (BuiltSQL, error) {
	if p.ClientName == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "client_name"}
	}
	if p.Year == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "year"}
	}
	if p.Month == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "month"}
	}
	return BuiltSQL{
		SQL: "SELECT i.invoice_id, i.invoice_date, i.due_date, i.status, i.currency FROM invoices i " +
			"JOIN clients c ON c.client_id = i.client_id " +
			"WHERE c.client_name = :client_name AND YEAR(i.invoice_date) = :year AND MONTH(i.invoice_date) = :month " +
			"ORDER BY i.invoice_date, i.invoice_id",
		Params: map[string]any{"client_name": *p.ClientName, "year": *p.Year, "month": *p.Month},
	}, nil
}

func buildOverdueInvoicesAsOfDate(p plan.QueryPlan) (BuiltSQL, error) {
	if p.AsOfDate == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "as_of_date"}
	}
	return BuiltSQL{
		SQL: "SELECT i.invoice_id, c.client_name, i.invoice_date, i.due_date, i.status, i.currency FROM invoices i " +
			"JOIN clients c ON c.client_id = i.client_id " +
			"WHERE i.due_date < :as_of_date AND i.status <> 'Paid' " +
			"ORDER BY i.due_date, i.invoice_id",
		Params: map[string]any{"as_of_date": *p.AsOfDate},
	}, nil
}

func buildInvoiceLineItems(p plan.QueryPlan) (BuiltSQL, error) {
	if p.InvoiceID == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "invoice_id"}
	}
	return BuiltSQL{
		SQL: "SELECT line_id, invoice_id, service_name, quantity, unit_price, tax_rate, " +
			"(quantity * unit_price) * (1 + tax_rate) AS line_total_including_tax " +
			"FROM invoice_line_items WHERE invoice_id = :invoice_id ORDER BY line_id",
		Params: map[string]any{"invoice_id": *p.InvoiceID},
	}, nil
}

func buildLineItemCountByService(plan.QueryPlan) (BuiltSQL, error) {
	return BuiltSQL{
		SQL: "SELECT service_name, COUNT(*) AS line_item_count FROM invoice_line_items " +
			"GROUP BY service_name ORDER BY line_item_count DESC, service_name",
		Params: map[string]any{},
	}, nil
}

func buildClientTotalBilledByYear(p plan.QueryPlan) (BuiltSQL, error) {
	if p.Year == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "year"}
	}
	return BuiltSQL{
		SQL: "SELECT c.client_id, c.client_name, SUM(" + lineTotal + ") AS total_billed_including_tax " +
			"FROM clients c " +
			"JOIN invoices i ON i.client_id = c.client_id " +
			"JOIN invoice_line_items li ON li.invoice_id = i.invoice_id " +
			"WHERE YEAR(i.invoice_date) = :year " +
			"GROUP BY c.client_id, c.client_name " +
			"ORDER BY total_billed_including_tax DESC, c.client_name",
		Params: map[string]any{"year": *p.Year},
	}, nil
}

func buildTopClientByYear(p plan.QueryPlan) (BuiltSQL, error) {
	if p.Year == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "year"}
	}
	return BuiltSQL{
		SQL: "SELECT c.client_id, c.client_name, SUM(" + lineTotal + ") AS total_billed_including_tax " +
			"FROM clients c " +
			"JOIN invoices i ON i.client_id = c.client_id " +
			"JOIN invoice_line_items li ON li.invoice_id = i.invoice_id " +
			"WHERE YEAR(i.invoice_date) = :year " +
			"GROUP BY c.client_id, c.client_name " +
			"ORDER BY total_billed_including_tax DESC, c.client_name " +
			"LIMIT 1",
		Params: map[string]any{"year": *p.Year},
	}, nil
}

func buildTopServicesByRevenue(p plan.QueryPlan) (BuiltSQL, error) {
	params := map[string]any{}
	where := ""
	if p.Year != nil {
		where = "WHERE YEAR(i.invoice_date) = :year "
		params["year"] = *p.Year
	}
	return BuiltSQL{
		SQL: "SELECT li.service_name, SUM(" + lineTotal + ") AS total_revenue_including_tax " +
			"FROM invoice_line_items li " +
			"JOIN invoices i ON i.invoice_id = li.invoice_id " +
			where +
			"GROUP BY li.service_name " +
			"ORDER BY total_revenue_including_tax DESC, li.service_name " +
			"LIMIT " + clampLimit(p.Limit, 5),
		Params: params,
	}, nil
}

func buildRevenueByCountry(p plan.QueryPlan) (BuiltSQL, error) {
	params := map[string]any{}
	where := ""
	if p.Year != nil {
		where = "WHERE YEAR(i.invoice_date) = :year "
		params["year"] = *p.Year
	}
	return BuiltSQL{
		SQL: "SELECT c.country, SUM(" + lineTotal + ") AS total_revenue_including_tax " +
			"FROM clients c " +
			"JOIN invoices i ON i.client_id = c.client_id " +
			"JOIN invoice_line_items li ON li.invoice_id = i.invoice_id " +
			where +
			"GROUP BY c.country " +
			"ORDER BY total_revenue_including_tax DESC, c.country",
		Params: params,
	}, nil
}

func buildServiceClientTotals(p plan.QueryPlan) (BuiltSQL, error) {
	if p.ServiceName == nil {
		return BuiltSQL{}, &MissingSlotError{Intent: p.Intent, Slot: "service_name"}
	}
	return BuiltSQL{
		SQL: "SELECT c.client_id, c.client_name, SUM(" + lineTotal + ") AS total_billed_including_tax " +
			"FROM clients c " +
			"JOIN invoices i ON i.client_id = c.client_id " +
			"JOIN invoice_line_items li ON li.invoice_id = i.invoice_id " +
			"WHERE li.service_name = :service_name " +
			"GROUP BY c.client_id, c.client_name " +
			"ORDER BY total_billed_including_tax DESC, c.client_name",
		Params: map[string]any{"service_name": *p.ServiceName},
	}, nil
}

func buildTopServicesEUH2(p plan.QueryPlan) (BuiltSQL, error) {
	startDate, endDate, err := h2Window(p)
	if err != nil {
		return BuiltSQL{}, err
	}

	countries := p.Countries
	if len(countries) == 0 {
		countries = defaultEUCountries
	}

	// The execution layer cannot bind an array into IN (...), so each list
	// element gets its own named placeholder.
	params := map[string]any{"start_date": startDate, "end_date": endDate}
	placeholders := make([]string, 0, len(countries))
	for i, country := range countries {
		name := "country_" + strconv.Itoa(i)
		placeholders = append(placeholders, ":"+name)
		params[name] = country
	}

	return BuiltSQL{
		SQL: "SELECT li.service_name, SUM(" + lineTotal + ") AS total_revenue_including_tax " +
			"FROM clients c " +
			"JOIN invoices i ON i.client_id = c.client_id " +
			"JOIN invoice_line_items li ON li.invoice_id = i.invoice_id " +
			"WHERE c.country IN (" + strings.Join(placeholders, ", ") + ") " +
			"AND i.invoice_date >= :start_date AND i.invoice_date <= :end_date " +
			"GROUP BY li.service_name " +
			"ORDER BY total_revenue_including_tax DESC, li.service_name " +
			"LIMIT " + clampLimit(p.Limit, 5),
		Params: params,
	}, nil
}

func h2Window(p plan.QueryPlan) (string, string, error) {
	if p.StartDate != nil && p.EndDate != nil {
		return *p.StartDate, *p.EndDate, nil
	}
	if p.Year != nil {
		year := strconv.Itoa(*p.Year)
		return year + "-07-01", year + "-12-31", nil
	}
	return "", "", &MissingSlotError{Intent: p.Intent, Slot: "start_date"}
}

// clampLimit bounds an inline LIMIT count to [1,200]. The router schema
// already caps the slot at 50; this guards against any other caller.
func clampLimit(limit *int, fallback int) string {
	value := fallback
	if limit != nil {
		value = *limit
	}
	if value < 1 {
		value = 1
	}
	if value > 200 {
		value = 200
	}
	return strconv.Itoa(value)
}
