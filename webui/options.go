package webui

import (
	"context"
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/core/history"
	"github.com/0xSaurabhSharma/code-correction-agent/core/memory"
	"github.com/0xSaurabhSharma/code-correction-agent/core/sandbox"
	"github.com/0xSaurabhSharma/code-correction-agent/core/sse"
	"github.com/0xSaurabhSharma/code-correction-agent/core/workflow"
	"github.com/prometheus/client_golang/prometheus"
)

// Guardrail screens code before it is compiled.
type Guardrail interface {
	Check(ctx context.Context, source string) error
}

type Config struct {
	Workflow   *workflow.Workflow
	Guard      Guardrail
	Sandbox    *sandbox.Sandbox
	History    *history.JSONStore
	Memory     memory.Store
	Events     *sse.Manager
	Metrics    prometheus.Gatherer
	ApiKeys    []string
	RunTimeout time.Duration
}

type Option func(*Config)

func WithWorkflow(w *workflow.Workflow) Option {
	return func(c *Config) {
		c.Workflow = w
	}
}

func WithGuard(g Guardrail) Option {
	return func(c *Config) {
		c.Guard = g
	}
}

// WithSandbox sets the sandbox submitted functions are compiled in.
func WithSandbox(sb *sandbox.Sandbox) Option {
	return func(c *Config) {
		c.Sandbox = sb
	}
}

func WithHistory(h *history.JSONStore) Option {
	return func(c *Config) {
		c.History = h
	}
}

func WithMemory(m memory.Store) Option {
	return func(c *Config) {
		c.Memory = m
	}
}

func WithEvents(m *sse.Manager) Option {
	return func(c *Config) {
		c.Events = m
	}
}

func WithMetrics(g prometheus.Gatherer) Option {
	return func(c *Config) {
		c.Metrics = g
	}
}

func WithApiKeys(keys ...string) Option {
	return func(c *Config) {
		c.ApiKeys = keys
	}
}

// WithRunTimeout bounds a whole /run_agent request, oracle calls included.
func WithRunTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.RunTimeout = d
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

func NewConfig(opts ...Option) *Config {
	c := &Config{
		RunTimeout: 5 * time.Minute,
	}
	c.Apply(opts...)
	if c.Sandbox == nil {
		c.Sandbox = sandbox.New()
	}
	return c
}
