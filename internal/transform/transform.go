// Package transform coerces raw extracted cells into typed sales records.
//
// Transform sits between extraction and the quality gate: it owns the
// numeric/date coercion rules and the revenue derivation, but performs no
// integrity validation beyond "is this cell coercible". Integrity rules
// belong to the quality gate.
package transform

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/example/tidemark/internal/extract"
	"github.com/example/tidemark/internal/sales"
)

// dateLayouts are the accepted order_date formats, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// Transform converts the extracted table into a typed batch.
//
// Coercion rules, matching the upstream extraction contract:
//   - order_id, customer_id: integer
//   - quantity: integer; a missing cell defaults to 1
//   - price: decimal
//   - order_date: one of dateLayouts
//   - revenue: recomputed as quantity * price; any input value is discarded
//
// A cell that cannot be coerced fails the whole transform with the offending
// row number. Absent optional cells (customer_id, product) zero-value the
// field; absent mandatory cells are left zeroed for the quality gate to
// reject, so the gate's report stays the single source of integrity errors.
func Transform(t *extract.Table) (sales.Batch, error) {
	if err := t.EnsureRows(); err != nil {
		return sales.Batch{}, err
	}

	batch := sales.Batch{
		Records: make([]sales.Record, 0, len(t.Rows)),
		Rows:    make([]int, 0, len(t.Rows)),
	}

	for i := range t.Rows {
		row := t.FirstRow + i
		rec, err := transformRow(t, i)
		if err != nil {
			return sales.Batch{}, fmt.Errorf("row %d: %w", row, err)
		}
		batch.Records = append(batch.Records, rec)
		batch.Rows = append(batch.Rows, row)
	}

	slog.Info("transform complete", "rows", batch.Len())
	return batch, nil
}

func transformRow(t *extract.Table, i int) (sales.Record, error) {
	var rec sales.Record
	var err error

	if raw := t.Cell(i, "order_id"); raw != "" {
		if rec.OrderID, err = parseInt(raw); err != nil {
			return rec, fmt.Errorf("order_id: %w", err)
		}
	}

	if raw := t.Cell(i, "order_date"); raw != "" {
		if rec.OrderDate, err = parseDate(raw); err != nil {
			return rec, fmt.Errorf("order_date: %w", err)
		}
	}

	if raw := t.Cell(i, "customer_id"); raw != "" {
		if rec.CustomerID, err = parseInt(raw); err != nil {
			return rec, fmt.Errorf("customer_id: %w", err)
		}
	}

	rec.Product = t.Cell(i, "product")

	// Missing quantity defaults to 1; a present but malformed quantity is
	// still a coercion error.
	if raw := t.Cell(i, "quantity"); raw == "" {
		rec.Quantity = 1
	} else if rec.Quantity, err = parseInt(raw); err != nil {
		return rec, fmt.Errorf("quantity: %w", err)
	}

	if raw := t.Cell(i, "price"); raw != "" {
		if rec.Price, err = parseFloat(raw); err != nil {
			return rec, fmt.Errorf("price: %w", err)
		}
	}

	rec.Revenue = rec.DerivedRevenue()
	return rec, nil
}

func parseInt(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return v, nil
}

func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return v, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("not a date: %q", raw)
}
