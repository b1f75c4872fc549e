package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/core/memory"
	"github.com/0xSaurabhSharma/code-correction-agent/core/oracle"
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	"github.com/mudler/xlog"
	"github.com/oklog/ulid/v2"
)

var (
	ErrCouldNotRepair = errors.New("could not repair function")
	ErrOracle         = errors.New("oracle failure")
	ErrUnknownStage   = errors.New("unknown stage")
)

type stageFunc func(ctx context.Context, s *types.RepairState) (any, error)

// Workflow drives a RepairState through the repair graph until the
// implementation runs cleanly or the run is given up.
type Workflow struct {
	oracle oracle.Oracle
	memory memory.Store
	opts   *options
	stages map[types.Stage]stageFunc
}

// New returns a workflow. store may be nil, in which case every memory
// stage is skipped.
func New(o oracle.Oracle, store memory.Store, opts ...Option) *Workflow {
	w := &Workflow{
		oracle: o,
		memory: store,
		opts:   newOptions(opts...),
	}
	w.stages = map[types.Stage]stageFunc{
		types.StageExecute:  w.execute,
		types.StageReport:   w.report,
		types.StageSearch:   w.search,
		types.StageFilter:   w.filter,
		types.StageModify:   w.modify,
		types.StageGenerate: w.generate,
		types.StageUpdate:   w.update,
		types.StagePatch:    w.patch,
	}
	return w
}

func NewRunID() string {
	return ulid.Make().String()
}

// Run heals impl. The final state is always returned, also together with
// an error, so callers can inspect the last failure and bug report.
func (w *Workflow) Run(ctx context.Context, impl types.Implementation, source string, args []any) (*types.RepairState, error) {
	state := types.NewRepairState(impl, source, args)
	return state, w.Resume(ctx, state, types.StageExecute)
}

// Resume continues a run from stage until it terminates.
func (w *Workflow) Resume(ctx context.Context, state *types.RepairState, stage types.Stage) error {
	if state.RunID == "" {
		state.RunID = NewRunID()
	}

	xlog.Info("Starting repair workflow", "run", state.RunID, "function", state.Function(), "arguments", state.Arguments)
	w.emit(types.Event{
		Type:     types.EventRunStarted,
		RunID:    state.RunID,
		Function: state.Function(),
		Stage:    stage,
		Status:   types.StatusRunning,
	})

	var err error
	for !stage.Terminal() {
		stage, err = w.Step(ctx, stage, state)
		if err != nil {
			break
		}
	}

	w.finish(state, err)
	return err
}

// Step runs a single stage and returns the stage to run next.
func (w *Workflow) Step(ctx context.Context, stage types.Stage, state *types.RepairState) (types.Stage, error) {
	run, ok := w.stages[stage]
	if !ok {
		return types.StageTerminated, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	if err := ctx.Err(); err != nil {
		return types.StageTerminated, err
	}

	if stage == types.StageExecute {
		state.Cycles++
	}
	state.Trace = append(state.Trace, stage)

	xlog.Debug("Entering stage", "run", state.RunID, "stage", stage, "function", state.Function())
	started := time.Now()

	result, err := run(ctx, state)
	event := types.Event{
		Type:     types.EventStageDone,
		RunID:    state.RunID,
		Function: state.Function(),
		Stage:    stage,
		Failed:   state.Failed,
		Error:    state.FailureDescription,
		Result:   result,
		Duration: time.Since(started),
	}
	if err != nil {
		event.Next = types.StageTerminated
		event.Error = err.Error()
		w.emit(event)
		return types.StageTerminated, err
	}

	next := Route(stage, state)
	if stage == types.StageExecute && next == types.StageReport && state.Cycles >= w.opts.maxCycles {
		err := fmt.Errorf("%w: %s still failing after %d executions: %s",
			ErrCouldNotRepair, state.Function(), state.Cycles, state.FailureDescription)
		event.Next = types.StageTerminated
		w.emit(event)
		return types.StageTerminated, err
	}

	event.Next = next
	w.emit(event)
	xlog.Debug("Stage completed", "run", state.RunID, "stage", stage, "next", next, "failed", state.Failed)
	return next, nil
}

func (w *Workflow) finish(state *types.RepairState, err error) {
	switch {
	case err == nil:
		state.Status = types.StatusHealthy
		xlog.Info("Function is healthy", "run", state.RunID, "function", state.Function(), "executions", state.Cycles)
	case errors.Is(err, ErrCouldNotRepair):
		state.Status = types.StatusUnrepaired
		state.Error = err.Error()
		xlog.Warn("Giving up on function", "run", state.RunID, "function", state.Function(), "error", err)
	default:
		state.Status = types.StatusError
		state.Error = err.Error()
		xlog.Error("Repair workflow failed", "run", state.RunID, "function", state.Function(), "error", err)
	}

	w.emit(types.Event{
		Type:     types.EventRunFinished,
		RunID:    state.RunID,
		Function: state.Function(),
		Failed:   state.Failed,
		Error:    state.Error,
		Status:   state.Status,
	})
}

func (w *Workflow) emit(e types.Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, o := range w.opts.observers {
		o.Observe(e)
	}
}

func (w *Workflow) emitMemory(state *types.RepairState, change types.MemoryChange) {
	w.emit(types.Event{
		Type:     types.EventMemoryChanged,
		RunID:    state.RunID,
		Function: state.Function(),
		Memory:   &change,
	})
}
