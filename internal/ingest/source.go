package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tabularqa/tabularqa/internal/storage"
)

// Source hands out one CSV stream per table.
type Source interface {
	Open(ctx context.Context, table string) (io.ReadCloser, error)
}

// DirSource reads <table>.csv files from a local directory.
type DirSource struct {
	Dir string
}

func (s DirSource) Open(_ context.Context, table string) (io.ReadCloser, error) {
	path := filepath.Join(s.Dir, table+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// BucketSource reads sources/<dataset>/<table>.csv from an object store.
type BucketSource struct {
	Store   storage.ObjectStore
	Dataset string
}

func (s BucketSource) Open(ctx context.Context, table string) (io.ReadCloser, error) {
	key, err := storage.BuildSourceKey(s.Dataset, table+".csv")
	if err != nil {
		return nil, err
	}
	return s.Store.Get(ctx, key)
}
