// Package sales defines the typed sales-order data model shared by the
// pipeline stages.
//
// A Record only becomes part of a ValidatedBatch after passing the quality
// gate, so downstream components (delta selection, merge) can rely on every
// record satisfying the integrity rules without re-checking them.
package sales
