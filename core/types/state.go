package types

import (
	"context"
	"fmt"
	"strings"
)

// Implementation is a callable unit the workflow can execute and replace.
type Implementation interface {
	Name() string
	// Call invokes the unit. A non-nil error means the call failed:
	// it panicked, returned a non-nil error, or timed out.
	Call(ctx context.Context, args []any) (any, error)
}

type Status string

const (
	StatusRunning    Status = "running"
	StatusHealthy    Status = "healthy"
	StatusUnrepaired Status = "unrepaired"
	StatusError      Status = "error"
)

// MemoryMatch is a single similarity search hit.
type MemoryMatch struct {
	ID       string  `json:"id"`
	Text     string  `json:"memory"`
	Distance float64 `json:"distance"`
}

// RepairState is threaded through every stage of one workflow run.
type RepairState struct {
	RunID string `json:"run_id"`

	Implementation     Implementation `json:"-"`
	SourceText         string         `json:"function_string"`
	ProposedSourceText string         `json:"new_function_string"`
	Arguments          []any          `json:"arguments"`

	Failed             bool   `json:"error"`
	FailureDescription string `json:"error_description"`
	BugReport          string `json:"bug_report"`

	MemoryMatches  []MemoryMatch `json:"memory_search_results"`
	PendingUpdates []string      `json:"memory_ids_to_update"`

	Cycles int     `json:"cycles"`
	Trace  []Stage `json:"trace"`
	Status Status  `json:"status"`
	Error  string  `json:"workflow_error,omitempty"`
}

// NewRepairState builds the initial state of a run. Arguments are copied
// so the caller cannot change them while the run is in flight.
func NewRepairState(impl Implementation, source string, args []any) *RepairState {
	arguments := make([]any, len(args))
	copy(arguments, args)

	return &RepairState{
		Implementation: impl,
		SourceText:     source,
		Arguments:      arguments,
		MemoryMatches:  []MemoryMatch{},
		PendingUpdates: []string{},
		Trace:          []Stage{},
		Status:         StatusRunning,
	}
}

// Function returns the name of the current implementation, or "" if none.
func (s *RepairState) Function() string {
	if s.Implementation == nil {
		return ""
	}
	return s.Implementation.Name()
}

// PopPendingUpdate removes and returns the front of the update queue.
func (s *RepairState) PopPendingUpdate() (string, bool) {
	if len(s.PendingUpdates) == 0 {
		return "", false
	}
	id := s.PendingUpdates[0]
	s.PendingUpdates = s.PendingUpdates[1:]
	return id, true
}

func (s *RepairState) MarkFailed(description string) {
	s.Failed = true
	s.FailureDescription = description
}

func (s *RepairState) MarkSucceeded() {
	s.Failed = false
	s.FailureDescription = ""
}

func (s *RepairState) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("run=%s function=%s status=%s cycles=%d failed=%t",
		s.RunID, s.Function(), s.Status, s.Cycles, s.Failed))
	if s.FailureDescription != "" {
		sb.WriteString(fmt.Sprintf(" error=%q", s.FailureDescription))
	}
	return sb.String()
}
