package history

import (
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
)

// RunRecord is what is kept of a finished workflow run.
type RunRecord struct {
	ID                 string        `json:"id"`
	Function           string        `json:"function"`
	Status             types.Status  `json:"status"`
	OriginalSource     string        `json:"original_function_string"`
	SourceText         string        `json:"function_string"`
	Arguments          []any         `json:"arguments"`
	Failed             bool          `json:"error"`
	FailureDescription string        `json:"error_description,omitempty"`
	BugReport          string        `json:"bug_report,omitempty"`
	Cycles             int           `json:"cycles"`
	Trace              []types.Stage `json:"trace"`
	Error              string        `json:"workflow_error,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	FinishedAt         time.Time     `json:"finished_at"`
}

// NewRecord captures state once its run has terminated.
func NewRecord(state *types.RepairState, originalSource string, started time.Time) *RunRecord {
	return &RunRecord{
		ID:                 state.RunID,
		Function:           state.Function(),
		Status:             state.Status,
		OriginalSource:     originalSource,
		SourceText:         state.SourceText,
		Arguments:          state.Arguments,
		Failed:             state.Failed,
		FailureDescription: state.FailureDescription,
		BugReport:          state.BugReport,
		Cycles:             state.Cycles,
		Trace:              state.Trace,
		Error:              state.Error,
		StartedAt:          started,
		FinishedAt:         time.Now(),
	}
}

func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Patched reports whether the run ended on a different source than it
// started with.
func (r *RunRecord) Patched() bool {
	return r.SourceText != r.OriginalSource
}
