package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/0xSaurabhSharma/code-correction-agent/core/memory"
	"github.com/0xSaurabhSharma/code-correction-agent/core/oracle"
	"github.com/0xSaurabhSharma/code-correction-agent/core/sandbox"
	"github.com/0xSaurabhSharma/code-correction-agent/core/strategy"
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	"github.com/0xSaurabhSharma/code-correction-agent/pkg/xstrings"
	"github.com/mudler/xlog"
)

// describeFailure renders a call error for the oracle. Panics keep their
// message with a "panic:" prefix so they read differently from returned
// errors.
func describeFailure(err error) string {
	var p *sandbox.PanicError
	if errors.As(err, &p) {
		return "panic: " + p.Error()
	}
	return err.Error()
}

func (w *Workflow) execute(ctx context.Context, s *types.RepairState) (any, error) {
	xlog.Info("Running function", "run", s.RunID, "function", s.Function(), "arguments", s.Arguments)

	result, err := s.Implementation.Call(ctx, s.Arguments)
	if err != nil {
		s.MarkFailed(describeFailure(err))
		xlog.Warn("Function failed", "run", s.RunID, "function", s.Function(), "error", s.FailureDescription)
		return nil, nil
	}

	s.MarkSucceeded()
	xlog.Info("Function ran without errors", "run", s.RunID, "function", s.Function(), "result", result)
	return result, nil
}

func (w *Workflow) report(ctx context.Context, s *types.RepairState) (any, error) {
	report, err := w.oracle.GenerateReport(ctx, s.SourceText, s.FailureDescription)
	if err != nil {
		return nil, fmt.Errorf("%w: generating bug report: %w", ErrOracle, err)
	}

	s.BugReport = strings.TrimSpace(report)
	if s.BugReport == "" {
		xlog.Warn("Oracle returned an empty bug report", "run", s.RunID, "function", s.Function())
	}
	xlog.Debug("Bug report", "run", s.RunID, "report", s.BugReport)
	return nil, nil
}

func (w *Workflow) search(ctx context.Context, s *types.RepairState) (any, error) {
	s.MemoryMatches = []types.MemoryMatch{}

	if w.memory == nil {
		xlog.Warn("Memory store is not initialized, skipping memory search", "run", s.RunID)
		w.emitMemory(s, types.MemoryChange{Op: types.MemorySkip, Err: "no memory store"})
		return nil, nil
	}

	summary, err := w.oracle.Summarize(ctx, s.BugReport)
	if err != nil {
		xlog.Error("Could not summarize bug report, skipping memory search", "run", s.RunID, "error", err)
		w.emitMemory(s, types.MemoryChange{Op: types.MemorySkip, Err: err.Error()})
		return nil, nil
	}

	matches, err := w.memory.Search(ctx, summary, w.opts.searchLimit)
	if err != nil {
		xlog.Error("Memory search failed", "run", s.RunID, "error", err)
		w.emitMemory(s, types.MemoryChange{Op: types.MemorySkip, Err: err.Error()})
		return nil, nil
	}
	if matches != nil {
		s.MemoryMatches = matches
	}

	xlog.Info("Searched memories", "run", s.RunID, "matches", len(s.MemoryMatches))
	w.emitMemory(s, types.MemoryChange{Op: types.MemorySearch, Matches: len(s.MemoryMatches)})
	return nil, nil
}

func (w *Workflow) filter(ctx context.Context, s *types.RepairState) (any, error) {
	s.PendingUpdates = memory.FilterForUpdate(s.MemoryMatches, w.opts.threshold)
	xlog.Info("Filtered memories", "run", s.RunID, "matches", len(s.MemoryMatches), "to_update", len(s.PendingUpdates))
	return nil, nil
}

func (w *Workflow) modify(ctx context.Context, s *types.RepairState) (any, error) {
	id, ok := s.PopPendingUpdate()
	if !ok {
		return nil, nil
	}

	if w.memory == nil {
		w.emitMemory(s, types.MemoryChange{Op: types.MemorySkip, ID: id, Err: "no memory store"})
		return nil, nil
	}

	prior, err := w.memory.Get(ctx, id)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			xlog.Warn("Memory vanished before it could be updated", "run", s.RunID, "id", id)
		} else {
			xlog.Error("Could not read memory", "run", s.RunID, "id", id, "error", err)
		}
		w.emitMemory(s, types.MemoryChange{Op: types.MemorySkip, ID: id, Err: err.Error()})
		return nil, nil
	}

	merged, err := w.oracle.MergeReports(ctx, s.BugReport, prior)
	if err != nil {
		xlog.Error("Could not merge bug reports", "run", s.RunID, "id", id, "error", err)
		w.emitMemory(s, types.MemoryChange{Op: types.MemorySkip, ID: id, Err: err.Error()})
		return nil, nil
	}

	if err := w.memory.Update(ctx, id, merged); err != nil {
		xlog.Error("Could not update memory", "run", s.RunID, "id", id, "error", err)
		w.emitMemory(s, types.MemoryChange{Op: types.MemorySkip, ID: id, Err: err.Error()})
		return nil, nil
	}

	xlog.Info("Updated memory", "run", s.RunID, "id", id, "remaining", len(s.PendingUpdates))
	w.emitMemory(s, types.MemoryChange{Op: types.MemoryUpdate, ID: id})
	return nil, nil
}

func (w *Workflow) generate(ctx context.Context, s *types.RepairState) (any, error) {
	if w.memory == nil {
		xlog.Warn("Memory store is not initialized, not saving bug report", "run", s.RunID)
		w.emitMemory(s, types.MemoryChange{Op: types.MemorySkip, Err: "no memory store"})
		return nil, nil
	}

	summary, err := w.oracle.Summarize(ctx, s.BugReport)
	if err != nil {
		xlog.Error("Could not summarize bug report", "run", s.RunID, "error", err)
		w.emitMemory(s, types.MemoryChange{Op: types.MemorySkip, Err: err.Error()})
		return nil, nil
	}

	id, err := w.memory.Add(ctx, summary)
	if err != nil {
		xlog.Error("Could not save memory", "run", s.RunID, "error", err)
		w.emitMemory(s, types.MemoryChange{Op: types.MemorySkip, Err: err.Error()})
		return nil, nil
	}

	xlog.Info("Saved new memory", "run", s.RunID, "id", id)
	w.emitMemory(s, types.MemoryChange{Op: types.MemoryAdd, ID: id})
	return nil, nil
}

func (w *Workflow) update(ctx context.Context, s *types.RepairState) (any, error) {
	if w.opts.patchMode == PatchStrategy {
		chooser, ok := w.oracle.(oracle.StrategyChooser)
		if !ok {
			return nil, fmt.Errorf("%w: oracle cannot choose remediation strategies", ErrOracle)
		}
		plan, err := chooser.ChooseStrategy(ctx, s.SourceText, s.FailureDescription, s.BugReport)
		if err != nil {
			return nil, fmt.Errorf("%w: choosing remediation: %w", ErrOracle, err)
		}
		s.ProposedSourceText = plan.String()
		xlog.Info("Chose remediation", "run", s.RunID, "strategy", plan.Strategy, "reason", plan.Reason)
		return nil, nil
	}

	patch, err := w.oracle.ProposePatch(ctx, s.SourceText, s.FailureDescription)
	if err != nil {
		return nil, fmt.Errorf("%w: proposing patch: %w", ErrOracle, err)
	}
	s.ProposedSourceText = patch
	xlog.Debug("Proposed patch", "run", s.RunID, "patch", patch)
	return nil, nil
}

func (w *Workflow) patch(ctx context.Context, s *types.RepairState) (any, error) {
	var (
		installed types.Implementation
		source    string
		err       error
	)

	switch w.opts.patchMode {
	case PatchStrategy:
		installed, source, err = w.installStrategy(s)
	default:
		installed, source, err = w.installSource(ctx, s)
	}
	if err != nil {
		s.MarkFailed(fmt.Sprintf("patch rejected: %v", err))
		xlog.Error("Patch failed", "run", s.RunID, "function", s.Function(), "error", err)
		return nil, nil
	}

	s.Implementation = installed
	s.SourceText = source
	s.MarkSucceeded()
	xlog.Info("Patch installed", "run", s.RunID, "function", s.Function())

	result, err := installed.Call(ctx, s.Arguments)
	if err != nil {
		xlog.Warn("Patched function still fails", "run", s.RunID, "function", s.Function(), "error", err)
		if w.opts.smokeTestResetsFailure {
			s.MarkFailed(describeFailure(err))
		}
		return nil, nil
	}

	xlog.Info("Patched function ran without errors", "run", s.RunID, "function", s.Function(), "result", result)
	return result, nil
}

func (w *Workflow) installSource(ctx context.Context, s *types.RepairState) (types.Implementation, string, error) {
	code := xstrings.StripCodeFences(s.ProposedSourceText)
	if code == "" {
		return nil, "", errors.New("empty patch")
	}

	fn, err := w.opts.sandbox.CompileNamed(ctx, code, s.Function())
	if err != nil {
		return nil, "", err
	}

	if t, ok := signatureOf(s.Implementation); ok && !sandbox.SameParameters(t, fn.Type()) {
		return nil, "", fmt.Errorf("%w: %s was %s, patch is %s",
			sandbox.ErrSignatureMismatch, s.Function(), t, fn.Type())
	}
	return fn, code, nil
}

func (w *Workflow) installStrategy(s *types.RepairState) (types.Implementation, string, error) {
	plan, err := strategy.Parse(s.ProposedSourceText)
	if err != nil {
		return nil, "", err
	}

	base := s.Implementation
	source := s.SourceText
	// a new plan replaces the previous one instead of stacking on top of it
	if r, ok := base.(*strategy.Remediated); ok {
		base = r.Unwrap()
		source = stripHeader(source)
	}

	r, err := strategy.Apply(base, plan)
	if err != nil {
		return nil, "", err
	}
	return r, plan.Header() + "\n" + source, nil
}

func stripHeader(source string) string {
	lines := strings.Split(source, "\n")
	i := 0
	for i < len(lines) && (strings.HasPrefix(lines[i], "// remediation: ") || strings.HasPrefix(lines[i], "// reason: ")) {
		i++
	}
	return strings.Join(lines[i:], "\n")
}

type typed interface {
	Type() reflect.Type
}

type unwrapper interface {
	Unwrap() types.Implementation
}

// signatureOf finds the function type behind impl, looking through
// remediation wrappers.
func signatureOf(impl types.Implementation) (reflect.Type, bool) {
	for impl != nil {
		if t, ok := impl.(typed); ok {
			return t.Type(), true
		}
		u, ok := impl.(unwrapper)
		if !ok {
			break
		}
		impl = u.Unwrap()
	}
	return nil, false
}
