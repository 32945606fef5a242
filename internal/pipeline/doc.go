// Package pipeline sequences one incremental load run.
//
// A run is strictly linear and single-pass: extract, transform, quality
// gate, watermark read, delta selection, merge. Each stage runs to
// completion before the next starts; the first failure halts the run with a
// StageError naming the originating stage, and no later stage executes. No
// component retains state across runs - the watermark lives in the target
// store and is re-derived on every run.
//
// At most one run is assumed to execute against a given target store at a
// time. Staging tables are still run-scoped so overlapping runs cannot
// collide on them.
package pipeline
