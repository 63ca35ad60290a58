// Package ingest loads the billing dataset from CSV files into the database
// and exports table snapshots as parquet.
package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

type columnKind int

const (
	kindString columnKind = iota
	kindInt
	kindFloat
)

type tableSpec struct {
	name     string
	columns  []string
	kinds    map[string]columnKind
	required []string
	// synonyms maps normalized spreadsheet headers to canonical columns.
	synonyms map[string]string
}

// loadOrder lists the tables parent-first so foreign keys resolve during a
// single-transaction load.
var loadOrder = []tableSpec{
	{
		name:    "clients",
		columns: []string{"client_id", "client_name", "industry", "country"},
		kinds: map[string]columnKind{
			"client_id": kindInt,
		},
		required: []string{"client_id", "client_name"},
		synonyms: map[string]string{
			"id":   "client_id",
			"name": "client_name",
		},
	},
	{
		name:    "invoices",
		columns: []string{"invoice_id", "client_id", "invoice_date", "due_date", "status", "currency", "fx_rate_to_usd"},
		kinds: map[string]columnKind{
			"client_id":      kindInt,
			"fx_rate_to_usd": kindFloat,
		},
		required: []string{"invoice_id", "client_id", "invoice_date", "due_date", "status", "currency"},
		synonyms: map[string]string{
			"id":      "invoice_id",
			"date":    "invoice_date",
			"fx_rate": "fx_rate_to_usd",
		},
	},
	{
		name:    "invoice_line_items",
		columns: []string{"line_id", "invoice_id", "service_name", "quantity", "unit_price", "tax_rate"},
		kinds: map[string]columnKind{
			"line_id":    kindInt,
			"quantity":   kindFloat,
			"unit_price": kindFloat,
			"tax_rate":   kindFloat,
		},
		required: []string{"line_id", "invoice_id", "service_name", "quantity", "unit_price"},
		synonyms: map[string]string{
			"id":      "line_id",
			"service": "service_name",
			"price":   "unit_price",
		},
	},
}

func specFor(table string) (tableSpec, bool) {
	for _, spec := range loadOrder {
		if spec.name == table {
			return spec, true
		}
	}
	return tableSpec{}, false
}

// normalizeHeader turns a spreadsheet column label into a canonical column
// name: trimmed, lowercased, separators collapsed to underscores.
func normalizeHeader(spec tableSpec, header string) string {
	h := strings.TrimPrefix(header, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(h)
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	if canonical, ok := spec.synonyms[h]; ok {
		return canonical
	}
	return h
}

func (s tableSpec) hasColumn(name string) bool {
	for _, col := range s.columns {
		if col == name {
			return true
		}
	}
	return false
}

// coerce converts a CSV cell to the column's database type. Empty cells
// become nil.
func (s tableSpec) coerce(column, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	switch s.kinds[column] {
	case kindInt:
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not an integer", column, raw)
		}
		return value, nil
	case kindFloat:
		value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not a number", column, raw)
		}
		return value, nil
	default:
		return raw, nil
	}
}
