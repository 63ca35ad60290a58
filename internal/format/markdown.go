// Package format renders query results for chat transports.
package format

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// maxTableRows caps rendered tables so a chat reply stays readable.
const maxTableRows = 50

// RowsToMarkdownTable renders rows as a GitHub-style markdown table. Columns
// gives the header order; when nil the union of row keys is used in sorted
// order. Output is capped at 50 rows with a footer noting the truncation.
func RowsToMarkdownTable(rows []map[string]any, columns []string) string {
	if len(rows) == 0 {
		return "_No rows returned._"
	}
	if len(columns) == 0 {
		columns = columnUnion(rows)
	}

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString(" |\n|")
	for range columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	shown := rows
	if len(shown) > maxTableRows {
		shown = shown[:maxTableRows]
	}
	for _, row := range shown {
		b.WriteString("| ")
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = escapeCell(CellString(row[col]))
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}

	if len(rows) > maxTableRows {
		fmt.Fprintf(&b, "\n_Showing first %d of %d rows._", maxTableRows, len(rows))
	}
	return strings.TrimRight(b.String(), "\n")
}

// CellString renders a single database value the way it should appear to a
// reader. Drivers hand back a mix of ints, floats, []byte, and strings.
func CellString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func columnUnion(rows []map[string]any) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for col := range row {
			seen[col] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for col := range seen {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
