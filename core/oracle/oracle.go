package oracle

import (
	"context"
	"fmt"

	"github.com/0xSaurabhSharma/code-correction-agent/core/sandbox"
	"github.com/0xSaurabhSharma/code-correction-agent/core/strategy"
	"github.com/0xSaurabhSharma/code-correction-agent/pkg/llm"
	"github.com/mudler/xlog"
)

// Oracle produces the natural-language artifacts of the repair loop.
type Oracle interface {
	GenerateReport(ctx context.Context, source, failure string) (string, error)
	// Summarize condenses a bug report into ArchiveFormat.
	Summarize(ctx context.Context, bugReport string) (string, error)
	ProposePatch(ctx context.Context, source, failure string) (string, error)
	// MergeReports folds the current report into a prior memory.
	MergeReports(ctx context.Context, current, prior string) (string, error)
}

// StrategyChooser picks a pre-compiled remediation instead of writing code.
type StrategyChooser interface {
	ChooseStrategy(ctx context.Context, source, failure, bugReport string) (strategy.Plan, error)
}

// LLM implements Oracle and StrategyChooser over a chat completion client.
type LLM struct {
	client          llm.LLMClient
	model           string
	allowedPackages []string
}

type Option func(*LLM)

// WithAllowedPackages sets the imports a proposed patch is told it may use.
func WithAllowedPackages(pkgs ...string) Option {
	return func(o *LLM) {
		o.allowedPackages = pkgs
	}
}

func New(client llm.LLMClient, model string, opts ...Option) *LLM {
	o := &LLM{
		client:          client,
		model:           model,
		allowedPackages: sandbox.DefaultAllowedPackages,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var _ Oracle = (*LLM)(nil)
var _ StrategyChooser = (*LLM)(nil)

func (o *LLM) ask(ctx context.Context, name, tmpl string, data any) (string, error) {
	prompt, err := renderTemplate(name, tmpl, data)
	if err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", name, err)
	}

	reply, err := llm.Ask(ctx, o.client, o.model, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	xlog.Debug("Oracle reply", "prompt", name, "reply", reply)
	return reply, nil
}

func (o *LLM) GenerateReport(ctx context.Context, source, failure string) (string, error) {
	return o.ask(ctx, "bugReport", bugReportTemplate, struct {
		Source  string
		Failure string
	}{source, failure})
}

func (o *LLM) Summarize(ctx context.Context, bugReport string) (string, error) {
	return o.ask(ctx, "summarize", summarizeTemplate, struct {
		BugReport string
		Format    string
	}{bugReport, ArchiveFormat})
}

func (o *LLM) ProposePatch(ctx context.Context, source, failure string) (string, error) {
	return o.ask(ctx, "patch", patchTemplate, struct {
		Source  string
		Failure string
		Allowed []string
	}{source, failure, o.allowedPackages})
}

func (o *LLM) MergeReports(ctx context.Context, current, prior string) (string, error) {
	return o.ask(ctx, "merge", mergeTemplate, struct {
		BugReport string
		Prior     string
		Format    string
	}{current, prior, ArchiveFormat})
}

func (o *LLM) ChooseStrategy(ctx context.Context, source, failure, bugReport string) (strategy.Plan, error) {
	prompt, err := renderTemplate("strategy", strategyTemplate, struct {
		Source    string
		Failure   string
		BugReport string
	}{source, failure, bugReport})
	if err != nil {
		return strategy.Plan{}, fmt.Errorf("rendering strategy prompt: %w", err)
	}

	var plan strategy.Plan
	if err := llm.AskJSON(ctx, o.client, o.model, prompt, strategy.Tool(), &plan); err != nil {
		return strategy.Plan{}, fmt.Errorf("strategy: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return strategy.Plan{}, fmt.Errorf("strategy: %w", err)
	}
	return plan, nil
}
