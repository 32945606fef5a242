// Package store provides SQLite-backed durable storage for sales orders.
//
// The store owns the three relational concerns of the pipeline:
//
//   - Target table: keyed by order_id, the single source of truth.
//   - Watermark: MAX(order_date) over the target, re-derived fresh on every
//     run rather than cached in process memory, so reruns are always
//     consistent with the store's actual contents. An empty target yields an
//     explicit absent sentinel, never a zero default.
//   - Merge protocol: delta rows are bulk-loaded verbatim into a run-scoped
//     staging table and merged into the target with a set-based
//     ON CONFLICT(order_id) DO UPDATE upsert, all inside one transaction.
//     Either every delta row is reflected or none is, so a rerun after a
//     mid-merge failure is safe and idempotent.
//
// Staging tables are named <prefix>_<run id> so concurrent runs cannot
// collide, dropped inside the merge transaction on success, removed by
// rollback on failure, and swept at Open in case a prior process died between
// commit and cleanup.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
