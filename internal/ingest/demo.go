package ingest

import (
	"context"
	"embed"
	"fmt"
	"io"
)

//go:embed demo/*.csv
var demoFS embed.FS

// DemoSource serves the embedded sample dataset, used by the dev profile and
// the ingest CLI's --demo flag.
type DemoSource struct{}

func (DemoSource) Open(_ context.Context, table string) (io.ReadCloser, error) {
	f, err := demoFS.Open("demo/" + table + ".csv")
	if err != nil {
		return nil, fmt.Errorf("open demo table %s: %w", table, err)
	}
	return f, nil
}
