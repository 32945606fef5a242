package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/tidemark/internal/sales"
)

// auditActor is the value recorded in the created_by/modified_by audit
// columns for rows written by the merge.
const auditActor = "tidemark"

// MergeResult reports the outcome of one merge operation.
type MergeResult struct {
	// Inserted is the number of delta rows whose key was new to the target.
	Inserted int64 `json:"inserted"`

	// Updated is the number of delta rows that overwrote an existing key.
	Updated int64 `json:"updated"`
}

// Merge bulk-loads the delta into a run-scoped staging table and merges it
// into the target with a set-based upsert keyed on order_id, all inside a
// single transaction:
//
//  1. create <prefix>_<run id> and load the delta verbatim;
//  2. upsert from staging into the target - new keys insert, existing keys
//     have every non-key column overwritten (last-write-wins per run);
//  3. drop the staging table.
//
// The operation is atomic with respect to the target: on any failure the
// transaction rolls back, leaving the target untouched and taking the staging
// table with it. A deferred best-effort drop covers the remaining exit path
// where the transaction committed but the process is interrupted before
// cleanup; Open's staging sweep covers abnormal termination.
//
// An empty delta is a successful no-op. Rerunning with the same delta yields
// the same target state with no duplicate key errors.
func (s *Store) Merge(ctx context.Context, delta []sales.Record) (MergeResult, error) {
	if len(delta) == 0 {
		slog.Info("merge skipped, empty delta")
		return MergeResult{}, nil
	}

	runID := strings.ReplaceAll(uuid.NewString(), "-", "")
	staging := fmt.Sprintf("%s_%s", s.stagingPrefix, runID)

	// Guaranteed disposal on every exit path. Inside the happy path the table
	// is dropped within the transaction and this is a no-op.
	defer func() {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS " + staging); err != nil {
			slog.Error("failed to drop staging table", "table", staging, "error", err)
		}
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Staging mirrors the target's columns but carries no constraints: the
	// delta is loaded verbatim and the target's constraints apply at upsert.
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE %s (
			order_id    INTEGER,
			order_date  TEXT,
			customer_id INTEGER,
			product     TEXT,
			quantity    INTEGER,
			price       REAL,
			revenue     REAL
		)
	`, staging))
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge: create staging: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (order_id, order_date, customer_id, product, quantity, price, revenue)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, staging))
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge: prepare staging load: %w", err)
	}
	defer stmt.Close()

	for _, r := range delta {
		_, err = stmt.ExecContext(ctx,
			r.OrderID,
			r.OrderDate.UTC().Format(dateFormat),
			r.CustomerID,
			r.Product,
			r.Quantity,
			r.Price,
			r.Revenue,
		)
		if err != nil {
			return MergeResult{}, fmt.Errorf("merge: stage order %d: %w", r.OrderID, err)
		}
	}

	// Delta keys are unique (quality gate), so the split between inserts and
	// updates is exactly the overlap with the target before the upsert.
	var updated int64
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FROM %s st JOIN %s t ON t.order_id = st.order_id
	`, staging, s.table)).Scan(&updated)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge: count existing keys: %w", err)
	}

	// WHERE true disambiguates the SELECT source from the ON CONFLICT clause
	// for SQLite's parser. New rows get both audit timestamps; updated rows
	// keep their created_* values and advance modified_*.
	now := time.Now().UTC().Format(dateFormat)
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s (order_id, order_date, customer_id, product, quantity, price, revenue,
			created_date, created_by, modified_date, modified_by)
		SELECT order_id, order_date, customer_id, product, quantity, price, revenue, ?, ?, ?, ?
		FROM %[2]s WHERE true
		ON CONFLICT(order_id) DO UPDATE SET
			order_date    = excluded.order_date,
			customer_id   = excluded.customer_id,
			product       = excluded.product,
			quantity      = excluded.quantity,
			price         = excluded.price,
			revenue       = excluded.revenue,
			modified_date = excluded.modified_date,
			modified_by   = excluded.modified_by
	`, s.table, staging), now, auditActor, now, auditActor)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge: upsert into %s: %w", s.table, err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+staging); err != nil {
		return MergeResult{}, fmt.Errorf("merge: drop staging: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return MergeResult{}, fmt.Errorf("merge: commit: %w", err)
	}

	result := MergeResult{
		Inserted: int64(len(delta)) - updated,
		Updated:  updated,
	}
	slog.Info("merge complete",
		"staged", len(delta), "inserted", result.Inserted, "updated", result.Updated)
	return result, nil
}
