package workflow

import (
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/core/memory"
	"github.com/0xSaurabhSharma/code-correction-agent/core/sandbox"
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
)

type PatchMode string

const (
	// PatchSource installs oracle-written source compiled in the sandbox.
	PatchSource PatchMode = "source"
	// PatchStrategy wraps the implementation with a pre-compiled remediation.
	PatchStrategy PatchMode = "strategy"
)

const DefaultMaxCycles = 5

type options struct {
	maxCycles              int
	searchLimit            int
	threshold              float64
	patchMode              PatchMode
	smokeTestResetsFailure bool
	observers              []types.Observer
	sandbox                *sandbox.Sandbox
	callTimeout            time.Duration
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		maxCycles:              DefaultMaxCycles,
		searchLimit:            memory.DefaultSearchLimit,
		threshold:              memory.DefaultDistanceThreshold,
		patchMode:              PatchSource,
		smokeTestResetsFailure: true,
	}
}

func newOptions(opts ...Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.sandbox == nil {
		var sbOpts []sandbox.Option
		if o.callTimeout > 0 {
			sbOpts = append(sbOpts, sandbox.WithCallTimeout(o.callTimeout))
		}
		o.sandbox = sandbox.New(sbOpts...)
	}
	return o
}

// WithMaxCycles bounds how many times one run enters Execute. A failure
// on the last allowed execution ends the run with ErrCouldNotRepair.
// Values below 1 are ignored.
func WithMaxCycles(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxCycles = n
		}
	}
}

func WithSearchLimit(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.searchLimit = k
		}
	}
}

func WithDistanceThreshold(t float64) Option {
	return func(o *options) {
		o.threshold = t
	}
}

func WithPatchMode(m PatchMode) Option {
	return func(o *options) {
		if m != "" {
			o.patchMode = m
		}
	}
}

// WithSmokeTestResetsFailure controls whether a patch that fails its smoke
// test is marked failed right away (the default). With false, a failing
// smoke test is only logged and the next Execute stage catches it.
func WithSmokeTestResetsFailure(b bool) Option {
	return func(o *options) {
		o.smokeTestResetsFailure = b
	}
}

func WithObserver(obs ...types.Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs...)
	}
}

// WithCallTimeout bounds each call of an installed patch. It is ignored
// when WithSandbox is given.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		o.callTimeout = d
	}
}

// WithSandbox sets the sandbox patches are compiled in.
func WithSandbox(sb *sandbox.Sandbox) Option {
	return func(o *options) {
		o.sandbox = sb
	}
}
