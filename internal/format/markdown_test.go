package format

import (
	"strconv"
	"strings"
	"testing"
)

func TestRowsToMarkdownTable(t *testing.T) {
	rows := []map[string]any{
		{"client_name": "Acme GmbH", "country": "Germany"},
		{"client_name": "Beta | Co", "country": "France"},
	}
	got := RowsToMarkdownTable(rows, []string{"client_name", "country"})
	want := strings.Join([]string{
		"| client_name | country |",
		"| --- | --- |",
		"| Acme GmbH | Germany |",
		`| Beta \| Co | France |`,
	}, "\n")
	if got != want {
		t.Fatalf("table =\n%s\nwant\n%s", got, want)
	}
}

func TestRowsToMarkdownTableEmpty(t *testing.T) {
	if got := RowsToMarkdownTable(nil, nil); got != "_No rows returned._" {
		t.Fatalf("got %q", got)
	}
}

func TestRowsToMarkdownTableSortsColumnsWhenUnspecified(t *testing.T) {
	rows := []map[string]any{{"b": 2, "a": 1}}
	got := RowsToMarkdownTable(rows, nil)
	if !strings.HasPrefix(got, "| a | b |") {
		t.Fatalf("header = %q, want sorted columns", strings.SplitN(got, "\n", 2)[0])
	}
}

func TestRowsToMarkdownTableTruncates(t *testing.T) {
	rows := make([]map[string]any, 60)
	for i := range rows {
		rows[i] = map[string]any{"n": i}
	}
	got := RowsToMarkdownTable(rows, []string{"n"})
	if !strings.Contains(got, "_Showing first 50 of 60 rows._") {
		t.Fatalf("missing truncation footer:\n%s", got)
	}
	if strings.Contains(got, "| "+strconv.Itoa(55)+" |") {
		t.Fatal("row past the cap was rendered")
	}
}

func TestCellString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{[]byte("raw"), "raw"},
		{float64(1234.5), "1234.5"},
		{float64(1200), "1200"},
		{int64(7), "7"},
		{"text", "text"},
	}
	for _, tc := range cases {
		if got := CellString(tc.in); got != tc.want {
			t.Fatalf("CellString(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
