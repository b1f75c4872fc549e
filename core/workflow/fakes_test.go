package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/0xSaurabhSharma/code-correction-agent/core/memory"
	"github.com/0xSaurabhSharma/code-correction-agent/core/oracle"
	"github.com/0xSaurabhSharma/code-correction-agent/core/strategy"
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
)

const (
	divideSource = `func divide(a, b int) int {
	return a / b
}`

	divideFixed = `func divide(a, b int) any {
	if b == 0 {
		return "Error: division by zero"
	}
	return float64(a) / float64(b)
}`

	divideSummary = "# divide ## runtime error: integer divide by zero ### the denominator b is zero and is not checked"
)

var _ oracle.Oracle = (*fakeOracle)(nil)

// fakeOracle answers with canned text unless a func field overrides it.
type fakeOracle struct {
	sync.Mutex

	ReportFunc    func(source, failure string) (string, error)
	SummarizeFunc func(report string) (string, error)
	PatchFunc     func(source, failure string) (string, error)
	MergeFunc     func(current, prior string) (string, error)

	calls []string
}

func (f *fakeOracle) record(name string) {
	f.Lock()
	defer f.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeOracle) Calls() []string {
	f.Lock()
	defer f.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeOracle) GenerateReport(_ context.Context, source, failure string) (string, error) {
	f.record("report")
	if f.ReportFunc != nil {
		return f.ReportFunc(source, failure)
	}
	return "Bug Report: " + failure, nil
}

func (f *fakeOracle) Summarize(_ context.Context, report string) (string, error) {
	f.record("summarize")
	if f.SummarizeFunc != nil {
		return f.SummarizeFunc(report)
	}
	return divideSummary, nil
}

func (f *fakeOracle) ProposePatch(_ context.Context, source, failure string) (string, error) {
	f.record("patch")
	if f.PatchFunc != nil {
		return f.PatchFunc(source, failure)
	}
	return "```go\n" + divideFixed + "\n```", nil
}

func (f *fakeOracle) MergeReports(_ context.Context, current, prior string) (string, error) {
	f.record("merge")
	if f.MergeFunc != nil {
		return f.MergeFunc(current, prior)
	}
	return prior + " ### " + current, nil
}

type strategyOracle struct {
	fakeOracle
	plan strategy.Plan
}

func (s *strategyOracle) ChooseStrategy(_ context.Context, source, failure, bugReport string) (strategy.Plan, error) {
	s.record("strategy")
	return s.plan, nil
}

var _ memory.Store = (*fakeStore)(nil)

// fakeStore returns scripted search results and keeps documents in a map.
type fakeStore struct {
	sync.Mutex

	docs    map[string]string
	matches []types.MemoryMatch

	searchErr error
	addErr    error

	updated []string
	next    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]string{}}
}

func (f *fakeStore) Search(_ context.Context, query string, k int) ([]types.MemoryMatch, error) {
	f.Lock()
	defer f.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.matches) > k {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (string, error) {
	f.Lock()
	defer f.Unlock()
	text, ok := f.docs[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", memory.ErrNotFound, id)
	}
	return text, nil
}

func (f *fakeStore) Add(_ context.Context, text string) (string, error) {
	f.Lock()
	defer f.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	f.next++
	id := fmt.Sprintf("mem-%d", f.next)
	f.docs[id] = text
	return id, nil
}

func (f *fakeStore) Update(_ context.Context, id, text string) error {
	f.Lock()
	defer f.Unlock()
	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("%w: %s", memory.ErrNotFound, id)
	}
	f.docs[id] = text
	f.updated = append(f.updated, id)
	return nil
}

var errBoom = errors.New("boom")

// eventLog collects workflow events.
type eventLog struct {
	sync.Mutex
	events []types.Event
}

func (l *eventLog) Observe(e types.Event) {
	l.Lock()
	defer l.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) Events() []types.Event {
	l.Lock()
	defer l.Unlock()
	return append([]types.Event{}, l.events...)
}

func (l *eventLog) Stage(stage types.Stage) []types.Event {
	var out []types.Event
	for _, e := range l.Events() {
		if e.Type == types.EventStageDone && e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}
