package history_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/0xSaurabhSharma/code-correction-agent/core/history"
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type namedImpl string

func (n namedImpl) Name() string { return string(n) }

func (n namedImpl) Call(context.Context, []any) (any, error) { return nil, nil }

func record(id, fn string) *RunRecord {
	return &RunRecord{ID: id, Function: fn, Status: types.StatusHealthy}
}

var _ = Describe("JSONStore", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "history")
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
	})

	It("saves and lists records newest first", func() {
		store, err := NewJSONStore(filepath.Join(dir, "runs.json"), 0)
		Expect(err).ToNot(HaveOccurred())

		Expect(store.Save(record("1", "divide"))).To(Succeed())
		Expect(store.Save(record("2", "get_value"))).To(Succeed())
		Expect(store.Save(record("3", "divide"))).To(Succeed())

		ids := []string{}
		for _, r := range store.List(0) {
			ids = append(ids, r.ID)
		}
		Expect(ids).To(Equal([]string{"3", "2", "1"}))
		Expect(store.List(2)).To(HaveLen(2))
		Expect(store.ByFunction("divide")).To(HaveLen(2))
	})

	It("replaces a record saved twice", func() {
		store, err := NewJSONStore("", 0)
		Expect(err).ToNot(HaveOccurred())

		Expect(store.Save(record("1", "divide"))).To(Succeed())
		updated := record("1", "divide")
		updated.Status = types.StatusUnrepaired
		Expect(store.Save(updated)).To(Succeed())

		Expect(store.List(0)).To(HaveLen(1))
		r, err := store.Get("1")
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Status).To(Equal(types.StatusUnrepaired))
	})

	It("drops the oldest records past the limit", func() {
		store, err := NewJSONStore("", 2)
		Expect(err).ToNot(HaveOccurred())
		for _, id := range []string{"1", "2", "3"} {
			Expect(store.Save(record(id, "divide"))).To(Succeed())
		}
		_, err = store.Get("1")
		Expect(err).To(MatchError(ErrNotFound))
		Expect(store.List(0)).To(HaveLen(2))
	})

	It("persists records across reopen", func() {
		path := filepath.Join(dir, "nested", "runs.json")
		store, err := NewJSONStore(path, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(store.Save(record("1", "divide"))).To(Succeed())

		reopened, err := NewJSONStore(path, 0)
		Expect(err).ToNot(HaveOccurred())
		r, err := reopened.Get("1")
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Function).To(Equal("divide"))
	})

	It("deletes records", func() {
		store, err := NewJSONStore("", 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(store.Save(record("1", "divide"))).To(Succeed())
		Expect(store.Delete("1")).To(Succeed())
		Expect(store.Delete("1")).To(MatchError(ErrNotFound))
	})

	It("rejects records without an id", func() {
		store, err := NewJSONStore("", 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(store.Save(&RunRecord{})).ToNot(Succeed())
	})
})

var _ = Describe("NewRecord", func() {
	It("captures the final state of a run", func() {
		state := types.NewRepairState(namedImpl("divide"), "func divide(a, b int) float64 { return 0 }", []any{10, 0})
		state.RunID = "run-1"
		state.Status = types.StatusHealthy
		state.Cycles = 2
		started := time.Now().Add(-time.Second)

		r := NewRecord(state, "func divide(a, b int) int { return a / b }", started)
		Expect(r.ID).To(Equal("run-1"))
		Expect(r.Function).To(Equal("divide"))
		Expect(r.Patched()).To(BeTrue())
		Expect(r.Duration()).To(BeNumerically(">=", time.Second))
	})
})
