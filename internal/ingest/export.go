package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/parquet-go/parquet-go"

	"github.com/tabularqa/tabularqa/internal/storage"
)

type clientExportRow struct {
	ClientID   int64   `db:"client_id" parquet:"client_id"`
	ClientName string  `db:"client_name" parquet:"client_name"`
	Industry   *string `db:"industry" parquet:"industry,optional"`
	Country    *string `db:"country" parquet:"country,optional"`
}

type invoiceExportRow struct {
	InvoiceID   string  `db:"invoice_id" parquet:"invoice_id"`
	ClientID    int64   `db:"client_id" parquet:"client_id"`
	InvoiceDate string  `db:"invoice_date" parquet:"invoice_date"`
	DueDate     string  `db:"due_date" parquet:"due_date"`
	Status      string  `db:"status" parquet:"status"`
	Currency    string  `db:"currency" parquet:"currency"`
	FxRateToUSD float64 `db:"fx_rate_to_usd" parquet:"fx_rate_to_usd"`
}

type lineItemExportRow struct {
	LineID      int64   `db:"line_id" parquet:"line_id"`
	InvoiceID   string  `db:"invoice_id" parquet:"invoice_id"`
	ServiceName string  `db:"service_name" parquet:"service_name"`
	Quantity    float64 `db:"quantity" parquet:"quantity"`
	UnitPrice   float64 `db:"unit_price" parquet:"unit_price"`
	TaxRate     float64 `db:"tax_rate" parquet:"tax_rate"`
}

// Exporter writes parquet snapshots of the billing tables to an object store.
type Exporter struct {
	db     *sqlx.DB
	store  storage.ObjectStore
	logger *slog.Logger
	now    func() time.Time
}

func NewExporter(db *sqlx.DB, store storage.ObjectStore, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{db: db, store: store, logger: logger, now: time.Now}
}

// ExportAll snapshots every table under exports/<dataset>/ and returns the
// object keys written.
func (e *Exporter) ExportAll(ctx context.Context, dataset string) ([]string, error) {
	exportedAt := e.now()
	var keys []string

	clientKey, err := exportTable(ctx, e, dataset, "clients", exportedAt, func() ([]clientExportRow, error) {
		var rows []clientExportRow
		err := e.db.SelectContext(ctx, &rows,
			"SELECT client_id, client_name, industry, country FROM clients ORDER BY client_id")
		return rows, err
	})
	if err != nil {
		return nil, err
	}
	keys = append(keys, clientKey)

	invoiceKey, err := exportTable(ctx, e, dataset, "invoices", exportedAt, func() ([]invoiceExportRow, error) {
		var rows []invoiceExportRow
		err := e.db.SelectContext(ctx, &rows,
			"SELECT invoice_id, client_id, CAST(invoice_date AS VARCHAR) AS invoice_date, "+
				"CAST(due_date AS VARCHAR) AS due_date, status, currency, fx_rate_to_usd "+
				"FROM invoices ORDER BY invoice_id")
		return rows, err
	})
	if err != nil {
		return nil, err
	}
	keys = append(keys, invoiceKey)

	lineKey, err := exportTable(ctx, e, dataset, "invoice_line_items", exportedAt, func() ([]lineItemExportRow, error) {
		var rows []lineItemExportRow
		err := e.db.SelectContext(ctx, &rows,
			"SELECT line_id, invoice_id, service_name, quantity, unit_price, tax_rate "+
				"FROM invoice_line_items ORDER BY line_id")
		return rows, err
	})
	if err != nil {
		return nil, err
	}
	keys = append(keys, lineKey)

	e.logger.InfoContext(ctx, "dataset exported", "dataset", dataset, "objects", len(keys))
	return keys, nil
}

func exportTable[T any](ctx context.Context, e *Exporter, dataset, table string, exportedAt time.Time, load func() ([]T, error)) (string, error) {
	rows, err := load()
	if err != nil {
		return "", fmt.Errorf("read %s for export: %w", table, err)
	}

	data, err := encodeParquet(rows)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", table, err)
	}

	key, err := storage.BuildExportKey(dataset, table, exportedAt, 0)
	if err != nil {
		return "", err
	}
	if _, err := e.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)),
		storage.PutOptions{ContentType: "application/vnd.apache.parquet"}); err != nil {
		return "", fmt.Errorf("upload %s export: %w", table, err)
	}
	return key, nil
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
