package strategy_test

import (
	"context"

	"github.com/0xSaurabhSharma/code-correction-agent/core/sandbox"
	. "github.com/0xSaurabhSharma/code-correction-agent/core/strategy"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func ptr(f float64) *float64 { return &f }

var _ = Describe("Remediation strategies", func() {
	var divide *sandbox.Function

	BeforeEach(func() {
		var err error
		divide, err = sandbox.New().Compile(context.TODO(), "func divide(a, b int) int { return a / b }")
		Expect(err).ToNot(HaveOccurred())
	})

	It("returns an error sentinel instead of failing", func() {
		r, err := Apply(divide, Plan{Strategy: ReturnErrorSentinel, Message: "cannot divide", Reason: "zero denominator"})
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Name()).To(Equal("divide"))

		v, err := r.Call(context.TODO(), []any{10.0, 0.0})
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(HavePrefix("cannot divide: "))
		Expect(v).To(ContainSubstring("divide by zero"))
	})

	It("passes successful calls through untouched", func() {
		r, err := Apply(divide, Plan{Strategy: ReturnErrorSentinel})
		Expect(err).ToNot(HaveOccurred())
		v, err := r.Call(context.TODO(), []any{10.0, 5.0})
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(2))
	})

	It("returns the default value on failure", func() {
		r, err := Apply(divide, Plan{Strategy: WrapWithDefault, Default: "n/a"})
		Expect(err).ToNot(HaveOccurred())
		v, err := r.Call(context.TODO(), []any{10.0, 0.0})
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal("n/a"))
	})

	It("retries with clamped numeric arguments", func() {
		r, err := Apply(divide, Plan{Strategy: RetryWithClampedInput, Min: ptr(1)})
		Expect(err).ToNot(HaveOccurred())
		v, err := r.Call(context.TODO(), []any{10.0, 0.0})
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(10))
	})

	It("rejects invalid plans", func() {
		_, err := Apply(divide, Plan{Strategy: "rewrite-everything"})
		Expect(err).To(HaveOccurred())
		_, err = Apply(divide, Plan{Strategy: RetryWithClampedInput})
		Expect(err).To(HaveOccurred())
		_, err = Apply(divide, Plan{Strategy: RetryWithClampedInput, Min: ptr(5), Max: ptr(1)})
		Expect(err).To(HaveOccurred())
	})

	It("parses plans produced by the oracle", func() {
		p, err := Parse(`{"strategy":"wrap-with-default","default":"0","reason":"safe fallback"}`)
		Expect(err).ToNot(HaveOccurred())
		Expect(p.Strategy).To(Equal(WrapWithDefault))
		Expect(p.Header()).To(ContainSubstring("// remediation: wrap-with-default default=0"))
		Expect(p.Header()).To(ContainSubstring("// reason: safe fallback"))

		_, err = Parse("not json")
		Expect(err).To(HaveOccurred())
	})
})
