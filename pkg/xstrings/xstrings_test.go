package xstrings_test

import (
	"github.com/0xSaurabhSharma/code-correction-agent/pkg/xstrings"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("StripCodeFences", func() {
	It("removes a language fence", func() {
		in := "```go\nfunc divide(a, b int) int {\n\treturn a / b\n}\n```"
		Expect(xstrings.StripCodeFences(in)).To(Equal("func divide(a, b int) int {\n\treturn a / b\n}"))
	})

	It("removes bare fences and surrounding whitespace", func() {
		in := "\n```\nfunc f() {}\n```\n\n"
		Expect(xstrings.StripCodeFences(in)).To(Equal("func f() {}"))
	})

	It("leaves unfenced code untouched", func() {
		Expect(xstrings.StripCodeFences("func f() {}")).To(Equal("func f() {}"))
	})
})

var _ = Describe("UniqueSlice", func() {
	It("keeps first occurrences in order", func() {
		Expect(xstrings.UniqueSlice([]string{"b", "a", "b", "c", "a"})).To(Equal([]string{"b", "a", "c"}))
	})

	It("returns an empty slice for nil input", func() {
		Expect(xstrings.UniqueSlice[string](nil)).To(BeEmpty())
	})
})
