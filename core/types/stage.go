package types

import "time"

// Stage names a node of the repair graph.
type Stage string

const (
	StageExecute    Stage = "execute"
	StageReport     Stage = "report"
	StageSearch     Stage = "search"
	StageFilter     Stage = "filter"
	StageModify     Stage = "modify"
	StageGenerate   Stage = "generate"
	StageUpdate     Stage = "update"
	StagePatch      Stage = "patch"
	StageTerminated Stage = "terminated"
)

var Stages = []Stage{
	StageExecute,
	StageReport,
	StageSearch,
	StageFilter,
	StageModify,
	StageGenerate,
	StageUpdate,
	StagePatch,
}

func (s Stage) Terminal() bool {
	return s == StageTerminated
}

type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventStageDone     EventType = "stage_completed"
	EventRunFinished   EventType = "run_finished"
	EventMemoryChanged EventType = "memory_changed"
)

// Event is emitted to workflow observers. Result carries the value the
// implementation returned on a successful Execute or smoke test; it is
// not kept in the state.
type Event struct {
	Type     EventType     `json:"type"`
	RunID    string        `json:"run_id"`
	Function string        `json:"function"`
	Stage    Stage         `json:"stage,omitempty"`
	Next     Stage         `json:"next,omitempty"`
	Failed   bool          `json:"failed"`
	Error    string        `json:"error,omitempty"`
	Result   any           `json:"result,omitempty"`
	Memory   *MemoryChange `json:"memory,omitempty"`
	Status   Status        `json:"status,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Time     time.Time     `json:"time"`
}

type MemoryOp string

const (
	MemorySearch MemoryOp = "search"
	MemoryAdd    MemoryOp = "add"
	MemoryUpdate MemoryOp = "update"
	MemorySkip   MemoryOp = "skip"
)

type MemoryChange struct {
	Op      MemoryOp `json:"op"`
	ID      string   `json:"id,omitempty"`
	Matches int      `json:"matches,omitempty"`
	Err     string   `json:"error,omitempty"`
}

// Observer receives workflow events. Implementations must not block.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
