package metrics_test

import (
	"strings"
	"time"

	. "github.com/0xSaurabhSharma/code-correction-agent/core/metrics"
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Recorder", func() {
	var (
		reg *prometheus.Registry
		rec *Recorder
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		rec = NewRecorder(reg)
	})

	It("counts runs by status only", func() {
		for _, fn := range []string{"divide", "sumToN", "parse"} {
			rec.Observe(types.Event{Type: types.EventRunStarted, Function: fn})
			rec.Observe(types.Event{Type: types.EventRunFinished, Function: fn, Status: types.StatusHealthy})
		}
		rec.Observe(types.Event{Type: types.EventRunStarted, Function: "other"})
		rec.Observe(types.Event{Type: types.EventRunFinished, Function: "other", Status: types.StatusUnrepaired})

		Expect(testutil.CollectAndCount(reg, "heal_runs_started_total")).To(Equal(1))
		Expect(testutil.CollectAndCount(reg, "heal_runs_finished_total")).To(Equal(2))
		Expect(testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP heal_runs_started_total Total number of repair runs started
# TYPE heal_runs_started_total counter
heal_runs_started_total 4
# HELP heal_runs_finished_total Total number of repair runs finished by status
# TYPE heal_runs_finished_total counter
heal_runs_finished_total{status="healthy"} 3
heal_runs_finished_total{status="unrepaired"} 1
`), "heal_runs_started_total", "heal_runs_finished_total")).To(Succeed())
	})

	It("counts stages and memory operations", func() {
		rec.Observe(types.Event{Type: types.EventStageDone, Stage: types.StageExecute, Failed: true, Next: types.StageReport, Duration: time.Millisecond})
		rec.Observe(types.Event{Type: types.EventStageDone, Stage: types.StageReport, Next: types.StageSearch})
		rec.Observe(types.Event{Type: types.EventMemoryChanged, Memory: &types.MemoryChange{Op: types.MemoryAdd}})
		rec.Observe(types.Event{Type: types.EventMemoryChanged})

		Expect(testutil.CollectAndCount(reg, "heal_stages_total")).To(Equal(2))
		Expect(testutil.CollectAndCount(reg, "heal_stage_duration_seconds")).To(Equal(2))
		Expect(testutil.CollectAndCount(reg, "heal_memory_operations_total")).To(Equal(1))
	})

	It("can be registered on separate registries", func() {
		Expect(func() { NewRecorder(prometheus.NewRegistry()) }).ToNot(Panic())
	})
})
