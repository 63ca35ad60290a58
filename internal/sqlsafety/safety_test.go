package sqlsafety

import (
	"errors"
	"strings"
	"testing"
)

func TestEnforceRejectsWriteQueries(t *testing.T) {
	cases := []string{
		"DROP TABLE clients",
		"INSERT INTO clients VALUES (1)",
		"UPDATE invoices SET status = 'Paid'",
		"DELETE FROM invoice_line_items",
		"TRUNCATE TABLE invoices",
		"CREATE TABLE evil (id INT)",
		"ALTER TABLE clients ADD COLUMN x INT",
		"GRANT ALL ON clients TO nobody",
		"SELECT * FROM clients; DROP TABLE clients",
		"select * from clients where client_name = 'x' or delete from invoices",
	}
	for _, sql := range cases {
		t.Run(sql, func(t *testing.T) {
			_, err := Enforce(sql, DefaultConfig())
			var safetyErr *Error
			if !errors.As(err, &safetyErr) {
				t.Fatalf("Enforce(%q) error = %v, want *Error", sql, err)
			}
		})
	}
}

func TestEnforceRejectsEmptyStatement(t *testing.T) {
	for _, sql := range []string{"", "   ", ";", " ; "} {
		if _, err := Enforce(sql, DefaultConfig()); err == nil {
			t.Fatalf("Enforce(%q) expected error", sql)
		}
	}
}

func TestEnforceRejectsUnparseableSQL(t *testing.T) {
	_, err := Enforce("SELECT FROM WHERE", DefaultConfig())
	var safetyErr *Error
	if !errors.As(err, &safetyErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
}

func TestEnforceRejectsNonSelect(t *testing.T) {
	_, err := Enforce("SHOW TABLES", DefaultConfig())
	var safetyErr *Error
	if !errors.As(err, &safetyErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
}

func TestEnforceRejectsDisallowedTables(t *testing.T) {
	cases := []struct {
		sql   string
		table string
	}{
		{"SELECT * FROM payroll", "payroll"},
		{"SELECT c.client_id FROM clients c JOIN secrets s ON s.id = c.client_id", "secrets"},
		{"SELECT * FROM invoices WHERE client_id IN (SELECT id FROM employees)", "employees"},
	}
	for _, tc := range cases {
		t.Run(tc.table, func(t *testing.T) {
			_, err := Enforce(tc.sql, DefaultConfig())
			var safetyErr *Error
			if !errors.As(err, &safetyErr) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if !strings.Contains(safetyErr.Reason, tc.table) {
				t.Fatalf("Reason = %q, want mention of %q", safetyErr.Reason, tc.table)
			}
		})
	}
}

func TestEnforceAddsDefaultLimit(t *testing.T) {
	out, err := Enforce("SELECT * FROM clients", DefaultConfig())
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if !strings.Contains(strings.ToUpper(out), "LIMIT") {
		t.Fatalf("output %q lacks LIMIT", out)
	}
	if !strings.HasSuffix(out, ";") || strings.HasSuffix(out, ";;") {
		t.Fatalf("output %q must end in exactly one terminator", out)
	}
	if out != "SELECT * FROM clients LIMIT 50;" {
		t.Fatalf("Enforce() = %q, want %q", out, "SELECT * FROM clients LIMIT 50;")
	}
}

func TestEnforceStripsRepeatedTerminators(t *testing.T) {
	out, err := Enforce("SELECT status FROM invoices;; ", DefaultConfig())
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if out != "SELECT status FROM invoices LIMIT 50;" {
		t.Fatalf("Enforce() = %q, want %q", out, "SELECT status FROM invoices LIMIT 50;")
	}
}

func TestEnforceLeavesAggregatesAlone(t *testing.T) {
	cases := []string{
		"SELECT COUNT(*) AS c FROM clients",
		"SELECT SUM(quantity) FROM invoice_line_items",
		"SELECT status, COUNT(*) FROM invoices GROUP BY status",
		"SELECT country FROM clients GROUP BY country",
	}
	for _, sql := range cases {
		t.Run(sql, func(t *testing.T) {
			out, err := Enforce(sql, DefaultConfig())
			if err != nil {
				t.Fatalf("Enforce() error = %v", err)
			}
			if strings.Contains(strings.ToUpper(out), "LIMIT") {
				t.Fatalf("output %q should not gain a LIMIT", out)
			}
		})
	}
}

func TestEnforceKeepsExistingLimit(t *testing.T) {
	out, err := Enforce("SELECT client_name FROM clients LIMIT 5", DefaultConfig())
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if strings.Count(strings.ToUpper(out), "LIMIT") != 1 {
		t.Fatalf("output %q must keep exactly one LIMIT", out)
	}
	if !strings.Contains(out, "LIMIT 5") {
		t.Fatalf("output %q lost the caller's LIMIT", out)
	}
}

func TestEnforceIsIdempotent(t *testing.T) {
	cases := []string{
		"SELECT * FROM clients",
		"SELECT COUNT(*) AS c FROM clients",
		"SELECT i.invoice_id FROM invoices i JOIN clients c ON c.client_id = i.client_id LIMIT 10",
	}
	for _, sql := range cases {
		t.Run(sql, func(t *testing.T) {
			once, err := Enforce(sql, DefaultConfig())
			if err != nil {
				t.Fatalf("first Enforce() error = %v", err)
			}
			twice, err := Enforce(once, DefaultConfig())
			if err != nil {
				t.Fatalf("second Enforce() error = %v", err)
			}
			if once != twice {
				t.Fatalf("Enforce not idempotent: %q then %q", once, twice)
			}
		})
	}
}

func TestEnforceAcceptsNamedPlaceholders(t *testing.T) {
	out, err := Enforce("SELECT client_id, client_name FROM clients WHERE country = :country ORDER BY client_name", DefaultConfig())
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if !strings.Contains(out, ":country") {
		t.Fatalf("output %q lost the placeholder", out)
	}
}

func TestEnforceHonorsConfig(t *testing.T) {
	cfg := Config{AllowedTables: []string{"clients"}, RequireLimit: false, DefaultLimit: 50}
	out, err := Enforce("SELECT * FROM clients", cfg)
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if strings.Contains(strings.ToUpper(out), "LIMIT") {
		t.Fatalf("output %q gained a LIMIT with RequireLimit=false", out)
	}

	cfg = Config{AllowedTables: []string{"clients"}, RequireLimit: true, DefaultLimit: 7}
	out, err = Enforce("SELECT * FROM clients", cfg)
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if !strings.Contains(out, "LIMIT 7") {
		t.Fatalf("output %q must use the configured limit", out)
	}
}
