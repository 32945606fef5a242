package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/tidemark/internal/extract"
	"github.com/example/tidemark/internal/quality"
	"github.com/example/tidemark/internal/sales"
	"github.com/example/tidemark/internal/store"
	"github.com/example/tidemark/internal/transform"
)

// State names the orchestrator's position in the run.
// Transitions fire only on successful completion of the corresponding stage;
// any failure moves directly to StateFailed and halts.
type State string

const (
	StateStart          State = "START"
	StateQualityChecked State = "QUALITY_CHECKED"
	StateWatermarkRead  State = "WATERMARK_READ"
	StateDeltaSelected  State = "DELTA_SELECTED"
	StateMerged         State = "MERGED"
	StateFailed         State = "FAILED"
)

// Result summarizes a successful run.
type Result struct {
	// RowsRead is the number of records in the source batch after transform.
	RowsRead int `json:"rows_read"`

	// DeltaSize is the number of records newer than the watermark.
	DeltaSize int `json:"delta_size"`

	// FullLoad is true when the target was empty and the whole batch was
	// selected.
	FullLoad bool `json:"full_load"`

	// Inserted and Updated split the merged rows by whether their key was
	// new to the target.
	Inserted int64 `json:"inserted"`
	Updated  int64 `json:"updated"`

	// Watermark is the target's high-water mark after the merge; zero when
	// the target is still empty (empty source and empty target).
	Watermark time.Time `json:"watermark,omitzero"`
}

// Run executes one full pipeline run against the store: extract and
// transform the source file, gate the batch, read the watermark, select the
// delta, and merge it. The first stage failure aborts the run with a
// StageError; a failed run produces zero changes to the target.
func Run(ctx context.Context, st *store.Store, sourcePath string) (Result, error) {
	state := StateStart
	slog.Info("run starting", "state", state, "source", sourcePath)

	table, err := extract.Extract(sourcePath)
	if err != nil {
		return fail(StageExtract, err)
	}

	batch, err := transform.Transform(table)
	if err != nil {
		return fail(StageTransform, err)
	}

	validated, err := quality.Validate(batch)
	if err != nil {
		return fail(StageQuality, err)
	}
	state = StateQualityChecked
	slog.Debug("state transition", "state", state)

	wm, hasWM, err := st.Watermark(ctx)
	if err != nil {
		return fail(StageWatermark, err)
	}
	state = StateWatermarkRead
	if hasWM {
		slog.Info("watermark read", "state", state, "watermark", wm)
	} else {
		slog.Info("watermark absent, full load", "state", state)
	}

	delta := SelectDelta(validated, wm, hasWM)
	state = StateDeltaSelected
	slog.Info("delta selected", "state", state,
		"batch", validated.Len(), "delta", len(delta))

	merged, err := st.Merge(ctx, delta)
	if err != nil {
		return fail(StageMerge, err)
	}
	state = StateMerged

	result := Result{
		RowsRead:  batch.Len(),
		DeltaSize: len(delta),
		FullLoad:  !hasWM,
		Inserted:  merged.Inserted,
		Updated:   merged.Updated,
	}

	// Re-derive rather than compute from the batch: the watermark always
	// reflects what the target actually holds. The merge has already
	// committed here, so a failed re-read must not fail the run; fall back
	// to the local maximum so the summary cannot report an absent watermark
	// over a target that just gained rows.
	switch newWM, ok, err := st.Watermark(ctx); {
	case err != nil:
		slog.Warn("post-merge watermark read failed, deriving from delta",
			"error", err)
		result.Watermark = localWatermark(delta, wm, hasWM)
	case ok:
		result.Watermark = newWM
	}

	slog.Info("run complete", "state", state,
		"inserted", result.Inserted, "updated", result.Updated,
		"watermark", result.Watermark)
	return result, nil
}

func fail(stage Stage, err error) (Result, error) {
	slog.Error("run failed", "state", StateFailed, "stage", stage, "error", err)
	return Result{}, failed(stage, err)
}

// localWatermark computes the post-merge watermark from the run's own inputs:
// the maximum of the pre-merge watermark and the merged delta's order dates.
func localWatermark(delta []sales.Record, wm time.Time, hasWM bool) time.Time {
	var max time.Time
	if hasWM {
		max = wm
	}
	for _, r := range delta {
		if r.OrderDate.After(max) {
			max = r.OrderDate
		}
	}
	return max
}
