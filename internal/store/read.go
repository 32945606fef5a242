package store

import (
	"context"
	"fmt"
	"time"

	"github.com/example/tidemark/internal/sales"
)

// ReadOrder retrieves a single order by key.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadOrder(ctx context.Context, orderID int64) (sales.Record, error) {
	var rec sales.Record
	var rawDate string

	query := fmt.Sprintf(`
		SELECT order_id, order_date, customer_id, product, quantity, price, revenue
		FROM %s
		WHERE order_id = ?
	`, s.table)
	err := s.db.QueryRowContext(ctx, query, orderID).Scan(
		&rec.OrderID, &rawDate, &rec.CustomerID, &rec.Product,
		&rec.Quantity, &rec.Price, &rec.Revenue,
	)
	if err != nil {
		return sales.Record{}, err
	}

	rec.OrderDate, err = time.Parse(dateFormat, rawDate)
	if err != nil {
		return sales.Record{}, fmt.Errorf("malformed order_date for order %d: %w", orderID, err)
	}
	rec.OrderDate = rec.OrderDate.UTC()

	return rec, nil
}

// StagingTables returns the names of all staging tables currently present.
// A healthy store has none outside an in-flight merge.
func (s *Store) StagingTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE ? ORDER BY name",
		s.stagingPrefix+"_%")
	if err != nil {
		return nil, fmt.Errorf("list staging tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan staging table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staging tables: %w", err)
	}

	return names, nil
}
