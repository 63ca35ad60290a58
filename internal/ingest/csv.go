package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
)

// readCSV parses one table's CSV stream into coerced row maps keyed by
// canonical column names. Unknown columns are ignored; missing required
// columns fail the whole file.
func readCSV(spec tableSpec, r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", spec.name, err)
	}

	columns := make([]string, len(header))
	seen := map[string]bool{}
	for i, label := range header {
		name := normalizeHeader(spec, label)
		if !spec.hasColumn(name) {
			columns[i] = ""
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("%s: duplicate column %q", spec.name, name)
		}
		seen[name] = true
		columns[i] = name
	}
	for _, required := range spec.required {
		if !seen[required] {
			return nil, fmt.Errorf("%s: missing required column %q", spec.name, required)
		}
	}

	var rows []map[string]any
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", spec.name, line, err)
		}

		row := map[string]any{}
		for i, raw := range record {
			if i >= len(columns) || columns[i] == "" {
				continue
			}
			value, err := spec.coerce(columns[i], raw)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", spec.name, line, err)
			}
			row[columns[i]] = value
		}
		for _, required := range spec.required {
			if row[required] == nil {
				return nil, fmt.Errorf("%s line %d: column %q is empty", spec.name, line, required)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
