package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// dateFormat is the storage layout for order_date: UTC text with a
// fixed-width nanosecond fraction, so lexicographic order equals
// chronological order, which MAX() and the merge rely on. RFC3339Nano is
// unsuitable here: it trims trailing zeros, and the resulting variable-width
// text sorts "...00Z" above "...00.5Z".
const dateFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Watermark returns the maximum order_date currently present in the target
// table. ok is false when the target is empty: the explicit absent sentinel
// signaling the caller to treat the run as a full load.
//
// The read is a single point-in-time query with no surrounding transaction.
// The watermark is never cached; it advances implicitly as rows are merged
// and is re-derived here on every run.
func (s *Store) Watermark(ctx context.Context) (wm time.Time, ok bool, err error) {
	var raw sql.NullString
	query := fmt.Sprintf("SELECT MAX(order_date) FROM %s", s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		return time.Time{}, false, fmt.Errorf("read watermark: %w", err)
	}

	if !raw.Valid {
		return time.Time{}, false, nil
	}

	wm, err = time.Parse(dateFormat, raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed watermark %q: %w", raw.String, err)
	}

	return wm.UTC(), true, nil
}

// CountOrders returns the number of rows in the target table.
func (s *Store) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}
