// Package plan defines the structured output of the intent router: which
// enumerated question category applies and which typed slots were extracted.
package plan

import "fmt"

// Intent is a closed enumeration of supported question categories.
// FREEFORM_SQL is the escape hatch for questions no template covers.
type Intent string

const (
	IntentListClients Intent = "LIST_CLIENTS"

	IntentClientsByCountry Intent = "CLIENTS_BY_COUNTRY"

	IntentInvoicesByMonth          Intent = "INVOICES_BY_MONTH"
	IntentInvoicesByStatus         Intent = "INVOICES_BY_STATUS"
	IntentClientInvoices           Intent = "CLIENT_INVOICES"
	IntentInvoicesByClientAndMonth Intent = "INVOICES_BY_CLIENT_AND_MONTH"
	IntentOverdueInvoicesAsOfDate  Intent = "OVERDUE_INVOICES_AS_OF_DATE"

	IntentInvoiceLineItems       Intent = "INVOICE_LINE_ITEMS"
	IntentLineItemCountByService Intent = "LINE_ITEM_COUNT_BY_SERVICE"

	IntentClientTotalBilledByYear Intent = "CLIENT_TOTAL_BILLED_BY_YEAR"
	IntentTopClientByYear         Intent = "TOP_CLIENT_BY_YEAR"
	IntentTopServicesByRevenue    Intent = "TOP_SERVICES_BY_REVENUE"
	IntentRevenueByCountry        Intent = "REVENUE_BY_COUNTRY"
	IntentServiceClientTotals     Intent = "SERVICE_CLIENT_TOTALS"
	IntentTopServicesEUH2         Intent = "TOP_SERVICES_EU_H2"

	IntentFreeformSQL Intent = "FREEFORM_SQL"
)

// Intents lists every valid intent in schema order.
var Intents = []Intent{
	IntentListClients,
	IntentClientsByCountry,
	IntentInvoicesByMonth,
	IntentInvoicesByStatus,
	IntentClientInvoices,
	IntentInvoicesByClientAndMonth,
	IntentOverdueInvoicesAsOfDate,
	IntentInvoiceLineItems,
	IntentLineItemCountByService,
	IntentClientTotalBilledByYear,
	IntentTopClientByYear,
	IntentTopServicesByRevenue,
	IntentRevenueByCountry,
	IntentServiceClientTotals,
	IntentTopServicesEUH2,
	IntentFreeformSQL,
}

func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// QueryPlan carries the routed intent plus every slot the router may fill.
// Unset slots are nil pointers, matching the wire contract where every key is
// present but null.
type QueryPlan struct {
	Intent Intent `json:"intent"`

	ClientName *string `json:"client_name"`
	Country    *string `json:"country"`
	InvoiceID  *string `json:"invoice_id"`
	Status     *string `json:"status"`

	Year  *int `json:"year"`
	Month *int `json:"month"`

	AsOfDate  *string `json:"as_of_date"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`

	ServiceName *string `json:"service_name"`

	Limit *int `json:"limit"`

	Countries []string `json:"countries"`

	Rationale *string `json:"rationale"`
}

type Action string

const (
	ActionQuery   Action = "QUERY"
	ActionClarify Action = "CLARIFY"
	ActionRefuse  Action = "REFUSE"
)

// RouterResult wraps the router's decision. Exactly one action-specific
// payload group is populated, enforced by Validate.
type RouterResult struct {
	Action Action     `json:"action"`
	Plan   *QueryPlan `json:"plan"`

	ClarifyingQuestion *string  `json:"clarifying_question"`
	MissingFields      []string `json:"missing_fields"`

	RefusalMessage *string `json:"refusal_message"`

	Rationale *string `json:"rationale"`
}

// SchemaError reports a model response that does not conform to the declared
// router schema. It is fatal for the current request.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("router response violates schema: %s", e.Reason)
}

func schemaErrorf(format string, args ...any) *SchemaError {
	return &SchemaError{Reason: fmt.Sprintf(format, args...)}
}

// Validate enforces the action invariants from the router contract: QUERY has
// a plan and nothing else, CLARIFY has a question plus missing fields, REFUSE
// has a refusal message.
func (r RouterResult) Validate() error {
	switch r.Action {
	case ActionQuery:
		if r.Plan == nil {
			return schemaErrorf("QUERY requires a non-null plan")
		}
		if r.ClarifyingQuestion != nil {
			return schemaErrorf("QUERY must not carry a clarifying question")
		}
		if len(r.MissingFields) != 0 {
			return schemaErrorf("QUERY must not list missing fields")
		}
		return r.Plan.validate()
	case ActionClarify:
		if r.Plan != nil {
			return schemaErrorf("CLARIFY must not carry a plan")
		}
		if r.ClarifyingQuestion == nil || *r.ClarifyingQuestion == "" {
			return schemaErrorf("CLARIFY requires a clarifying question")
		}
		if len(r.MissingFields) == 0 {
			return schemaErrorf("CLARIFY requires missing field names")
		}
		return nil
	case ActionRefuse:
		if r.Plan != nil {
			return schemaErrorf("REFUSE must not carry a plan")
		}
		if r.RefusalMessage == nil || *r.RefusalMessage == "" {
			return schemaErrorf("REFUSE requires a refusal message")
		}
		return nil
	default:
		return schemaErrorf("unknown action %q", r.Action)
	}
}

func (p QueryPlan) validate() error {
	if !p.Intent.Valid() {
		return schemaErrorf("unknown intent %q", p.Intent)
	}
	if p.Month != nil && (*p.Month < 1 || *p.Month > 12) {
		return schemaErrorf("month %d out of range 1-12", *p.Month)
	}
	if p.Limit != nil && (*p.Limit < 1 || *p.Limit > 50) {
		return schemaErrorf("limit %d out of range 1-50", *p.Limit)
	}
	return nil
}
