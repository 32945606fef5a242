package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline stage an error originated from.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageQuality   Stage = "quality"
	StageWatermark Stage = "watermark"
	StageDelta     Stage = "delta"
	StageMerge     Stage = "merge"
)

// StageError wraps a stage failure with the stage it originated from.
// Every stage failure is fatal to the run: the pipeline halts, no later
// stage executes, and the target store is left unchanged.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// failed wraps err as a StageError for the given stage.
func failed(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the originating stage of err, or "" if err is not a
// StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
