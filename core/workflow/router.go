package workflow

import "github.com/0xSaurabhSharma/code-correction-agent/core/types"

// Route picks the stage following stage. It only reads the state.
func Route(stage types.Stage, s *types.RepairState) types.Stage {
	switch stage {
	case types.StageExecute:
		if !s.Failed {
			return types.StageTerminated
		}
		return types.StageReport
	case types.StageReport:
		return types.StageSearch
	case types.StageSearch:
		if len(s.MemoryMatches) > 0 {
			return types.StageFilter
		}
		return types.StageGenerate
	case types.StageFilter:
		if len(s.PendingUpdates) > 0 {
			return types.StageModify
		}
		return types.StageGenerate
	case types.StageModify:
		if len(s.PendingUpdates) > 0 {
			return types.StageModify
		}
		return types.StageUpdate
	case types.StageGenerate:
		return types.StageUpdate
	case types.StageUpdate:
		return types.StagePatch
	case types.StagePatch:
		return types.StageExecute
	}
	return types.StageTerminated
}
