package pipeline

import "fmt"

// Stage names a step of an analysis.
type Stage string

const (
	StageClassify  Stage = "classify"
	StageRead      Stage = "read"
	StageGrid      Stage = "grid"
	StageDTM       Stage = "dtm"
	StageDSM       Stage = "dsm"
	StageCHM       Stage = "chm"
	StageNormalize Stage = "normalize"
	StageTally     Stage = "tally"
	StageWrite     Stage = "write"
	StageReport    Stage = "report"
)

// StageError reports which stage failed and on which file.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, path string, err error) error {
	return &StageError{Stage: stage, Path: path, Err: err}
}
