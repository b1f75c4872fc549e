package oracle_test

import (
	"context"
	"errors"

	. "github.com/0xSaurabhSharma/code-correction-agent/core/oracle"
	"github.com/0xSaurabhSharma/code-correction-agent/core/strategy"
	"github.com/0xSaurabhSharma/code-correction-agent/pkg/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sashabaranov/go-openai"
)

var _ = Describe("LLM oracle", func() {
	var (
		prompts  []string
		reply    openai.ChatCompletionResponse
		replyErr error
		o        *LLM
	)

	BeforeEach(func() {
		prompts = nil
		reply = llm.TextResponse("ok")
		replyErr = nil
		o = New(&llm.MockClient{
			CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				Expect(req.Model).To(Equal("test-model"))
				prompts = append(prompts, req.Messages[0].Content)
				return reply, replyErr
			},
		}, "test-model", WithAllowedPackages("fmt", "strings"))
	})

	It("asks for a bug report with the source and the failure", func() {
		reply = llm.TextResponse("  integer divide by zero in divide  ")
		report, err := o.GenerateReport(context.TODO(), "func divide(a, b int) int { return a / b }", "runtime error: integer divide by zero")
		Expect(err).ToNot(HaveOccurred())
		Expect(report).To(Equal("integer divide by zero in divide"))
		Expect(prompts).To(HaveLen(1))
		Expect(prompts[0]).To(ContainSubstring("func divide(a, b int) int"))
		Expect(prompts[0]).To(ContainSubstring("Error: runtime error: integer divide by zero"))
	})

	It("summarizes and merges in the archive format", func() {
		_, err := o.Summarize(context.TODO(), "report")
		Expect(err).ToNot(HaveOccurred())
		_, err = o.MergeReports(context.TODO(), "current", "prior")
		Expect(err).ToNot(HaveOccurred())

		Expect(prompts[0]).To(ContainSubstring("Bug Report: report."))
		Expect(prompts[0]).To(ContainSubstring(ArchiveFormat))
		Expect(prompts[1]).To(ContainSubstring("Current Bug Report: current"))
		Expect(prompts[1]).To(ContainSubstring("Prior Bug Report: prior"))
		Expect(prompts[1]).To(ContainSubstring(ArchiveFormat))
	})

	It("tells the patch prompt which imports are allowed", func() {
		_, err := o.ProposePatch(context.TODO(), "func f() {}", "boom")
		Expect(err).ToNot(HaveOccurred())
		Expect(prompts[0]).To(ContainSubstring("fmt, strings"))
		Expect(prompts[0]).To(ContainSubstring("exact same name"))
	})

	It("wraps client failures", func() {
		replyErr = errors.New("provider down")
		_, err := o.GenerateReport(context.TODO(), "src", "err")
		Expect(err).To(MatchError(ContainSubstring("provider down")))
	})

	It("chooses a remediation strategy through structured output", func() {
		reply = llm.ToolCallResponse(strategy.ToolName, `{"strategy":"return-error-sentinel","message":"cannot divide","reason":"zero denominator"}`)
		plan, err := o.ChooseStrategy(context.TODO(), "src", "err", "report")
		Expect(err).ToNot(HaveOccurred())
		Expect(plan.Strategy).To(Equal(strategy.ReturnErrorSentinel))
		Expect(plan.Message).To(Equal("cannot divide"))
	})

	It("forces the remediation tool", func() {
		var got openai.ChatCompletionRequest
		o = New(&llm.MockClient{
			CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				got = req
				return llm.ToolCallResponse(strategy.ToolName, `{"strategy":"wrap-with-default","default":"0","reason":"zero denominator"}`), nil
			},
		}, "test-model")
		_, err := o.ChooseStrategy(context.TODO(), "src", "err", "report")
		Expect(err).ToNot(HaveOccurred())
		Expect(got.Tools).To(HaveLen(1))
		Expect(got.Tools[0].Function.Name).To(Equal(strategy.ToolName))
		Expect(got.ToolChoice).To(Equal(openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: strategy.ToolName},
		}))
	})

	It("rejects an unknown strategy", func() {
		reply = llm.ToolCallResponse(strategy.ToolName, `{"strategy":"rewrite","reason":"?"}`)
		_, err := o.ChooseStrategy(context.TODO(), "src", "err", "report")
		Expect(err).To(HaveOccurred())
	})
})
