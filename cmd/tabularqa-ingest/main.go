package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/tabularqa/tabularqa/internal/config"
	"github.com/tabularqa/tabularqa/internal/ingest"
	"github.com/tabularqa/tabularqa/internal/observability"
	"github.com/tabularqa/tabularqa/internal/store"
	s3store "github.com/tabularqa/tabularqa/internal/storage/s3"
)

func main() {
	var (
		dir        = flag.String("dir", "", "load CSV files from this directory")
		demo       = flag.Bool("demo", false, "load the embedded demo dataset")
		dataset    = flag.String("dataset", "billing-demo", "dataset name used for bucket paths")
		fromBucket = flag.Bool("from-bucket", false, "load CSV files from the configured object store")
		export     = flag.Bool("export", false, "export parquet snapshots to the object store after loading")
	)
	flag.Parse()

	cfg, err := config.LoadFromEnv("tabularqa-ingest")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open billing database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	if err := store.ApplySchema(ctx, db); err != nil {
		logger.Error("failed to apply schema", slog.Any("error", err))
		os.Exit(1)
	}

	var objectStore *s3store.Store
	if *fromBucket || *export {
		objectStore, err = s3store.New(ctx, s3store.Config{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			Bucket:          cfg.ObjectStore.Bucket,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
			Prefix:          cfg.ObjectStore.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var src ingest.Source
	switch {
	case *demo:
		src = ingest.DemoSource{}
	case *fromBucket:
		src = ingest.BucketSource{Store: objectStore, Dataset: *dataset}
	case *dir != "":
		src = ingest.DirSource{Dir: *dir}
	default:
		logger.Error("one of -demo, -dir, or -from-bucket is required")
		os.Exit(2)
	}

	counts, err := ingest.NewLoader(db, logger).LoadAll(ctx, src)
	if err != nil {
		logger.Error("load failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("dataset loaded",
		slog.Int("clients", counts["clients"]),
		slog.Int("invoices", counts["invoices"]),
		slog.Int("line_items", counts["invoice_line_items"]),
	)

	if *export {
		keys, err := ingest.NewExporter(db, objectStore, logger).ExportAll(ctx, *dataset)
		if err != nil {
			logger.Error("export failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("snapshots exported", slog.Int("objects", len(keys)))
	}
}
