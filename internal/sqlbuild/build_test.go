package sqlbuild

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/tabularqa/tabularqa/internal/plan"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

var placeholderPattern = regexp.MustCompile(`:([a-zA-Z_][a-zA-Z0-9_]*)`)

// requireBoundParams checks that placeholders and params are a bijection.
func requireBoundParams(t *testing.T, built BuiltSQL) {
	t.Helper()
	seen := map[string]bool{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(built.SQL, -1) {
		name := match[1]
		seen[name] = true
		if _, ok := built.Params[name]; !ok {
			t.Fatalf("placeholder :%s has no bound param", name)
		}
	}
	for name := range built.Params {
		if !seen[name] {
			t.Fatalf("param %q has no placeholder in SQL: %s", name, built.SQL)
		}
	}
}

func TestBuildListClients(t *testing.T) {
	built, err := Build(plan.QueryPlan{Intent: plan.IntentListClients})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "SELECT client_id, client_name, industry, country FROM clients ORDER BY client_name"
	if built.SQL != want {
		t.Fatalf("SQL = %q, want %q", built.SQL, want)
	}
	if len(built.Params) != 0 {
		t.Fatalf("Params = %v, want empty", built.Params)
	}
}

func TestBuildAllIntentsDeterministic(t *testing.T) {
	full := plan.QueryPlan{
		ClientName:  strPtr("Acme GmbH"),
		Country:     strPtr("Germany"),
		InvoiceID:   strPtr("INV-1001"),
		Status:      strPtr("Overdue"),
		Year:        intPtr(2024),
		Month:       intPtr(3),
		AsOfDate:    strPtr("2024-06-30"),
		StartDate:   strPtr("2024-07-01"),
		EndDate:     strPtr("2024-12-31"),
		ServiceName: strPtr("Consulting"),
		Limit:       intPtr(5),
		Countries:   []string{"Germany", "France"},
	}
	for _, intent := range plan.Intents {
		if intent == plan.IntentFreeformSQL {
			continue
		}
		t.Run(string(intent), func(t *testing.T) {
			p := full
			p.Intent = intent
			first, err := Build(p)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			second, err := Build(p)
			if err != nil {
				t.Fatalf("Build (second): %v", err)
			}
			if first.SQL != second.SQL {
				t.Fatalf("SQL not deterministic:\n%s\n%s", first.SQL, second.SQL)
			}
			if !reflect.DeepEqual(first.Params, second.Params) {
				t.Fatalf("Params not deterministic: %v vs %v", first.Params, second.Params)
			}
			requireBoundParams(t, first)
			if !strings.Contains(first.SQL, "ORDER BY") {
				t.Fatalf("SQL has no ORDER BY: %s", first.SQL)
			}
		})
	}
}

func TestBuildRevenueTemplatesUseTaxFormula(t *testing.T) {
	year := intPtr(2024)
	for _, intent := range []plan.Intent{
		plan.IntentClientTotalBilledByYear,
		plan.IntentTopClientByYear,
		plan.IntentTopServicesByRevenue,
		plan.IntentRevenueByCountry,
	} {
		built, err := Build(plan.QueryPlan{Intent: intent, Year: year})
		if err != nil {
			t.Fatalf("Build(%s): %v", intent, err)
		}
		if !strings.Contains(built.SQL, "(li.quantity * li.unit_price) * (1 + li.tax_rate)") {
			t.Fatalf("%s: missing tax-inclusive total: %s", intent, built.SQL)
		}
	}
}

func TestBuildTopClientByYearLimitsToOne(t *testing.T) {
	built, err := Build(plan.QueryPlan{Intent: plan.IntentTopClientByYear, Year: intPtr(2023)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasSuffix(built.SQL, "LIMIT 1") {
		t.Fatalf("SQL = %q, want LIMIT 1 suffix", built.SQL)
	}
}

func TestBuildTopServicesLimitClamped(t *testing.T) {
	cases := []struct {
		name  string
		limit *int
		want  string
	}{
		{"default", nil, "LIMIT 5"},
		{"explicit", intPtr(10), "LIMIT 10"},
		{"below range", intPtr(0), "LIMIT 1"},
		{"above range", intPtr(1000), "LIMIT 200"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			built, err := Build(plan.QueryPlan{Intent: plan.IntentTopServicesByRevenue, Limit: tc.limit})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if !strings.HasSuffix(built.SQL, tc.want) {
				t.Fatalf("SQL = %q, want %q suffix", built.SQL, tc.want)
			}
		})
	}
}

func TestBuildEUH2CountryPlaceholders(t *testing.T) {
	built, err := Build(plan.QueryPlan{
		Intent:    plan.IntentTopServicesEUH2,
		Countries: []string{"Germany", "France", "Spain"},
		StartDate: strPtr("2024-07-01"),
		EndDate:   strPtr("2024-12-31"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(built.SQL, "IN (:country_0, :country_1, :country_2)") {
		t.Fatalf("SQL = %q, want one placeholder per country", built.SQL)
	}
	if built.Params["country_1"] != "France" {
		t.Fatalf("country_1 = %v, want France", built.Params["country_1"])
	}
	requireBoundParams(t, built)
}

func TestBuildEUH2Defaults(t *testing.T) {
	built, err := Build(plan.QueryPlan{Intent: plan.IntentTopServicesEUH2, Year: intPtr(2024)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Params["start_date"] != "2024-07-01" || built.Params["end_date"] != "2024-12-31" {
		t.Fatalf("window = %v .. %v, want H2 2024", built.Params["start_date"], built.Params["end_date"])
	}
	if built.Params["country_0"] != "Austria" {
		t.Fatalf("country_0 = %v, want default country list", built.Params["country_0"])
	}
}

func TestBuildMissingSlot(t *testing.T) {
	cases := []struct {
		intent plan.Intent
		slot   string
	}{
		{plan.IntentClientsByCountry, "country"},
		{plan.IntentInvoicesByMonth, "year"},
		{plan.IntentInvoicesByStatus, "status"},
		{plan.IntentClientInvoices, "client_name"},
		{plan.IntentInvoiceLineItems, "invoice_id"},
		{plan.IntentOverdueInvoicesAsOfDate, "as_of_date"},
		{plan.IntentServiceClientTotals, "service_name"},
		{plan.IntentTopServicesEUH2, "start_date"},
	}
	for _, tc := range cases {
		t.Run(string(tc.intent), func(t *testing.T) {
			_, err := Build(plan.QueryPlan{Intent: tc.intent})
			var missing *MissingSlotError
			if !errors.As(err, &missing) {
				t.Fatalf("err = %v, want MissingSlotError", err)
			}
			if missing.Slot != tc.slot {
				t.Fatalf("Slot = %q, want %q", missing.Slot, tc.slot)
			}
		})
	}
}

func TestBuildUnsupportedIntent(t *testing.T) {
	for _, intent := range []plan.Intent{plan.IntentFreeformSQL, plan.Intent("MADE_UP")} {
		_, err := Build(plan.QueryPlan{Intent: intent})
		var unsupported *UnsupportedIntentError
		if !errors.As(err, &unsupported) {
			t.Fatalf("Build(%s) err = %v, want UnsupportedIntentError", intent, err)
		}
	}
}
