package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

type Kind string

const (
	ReturnErrorSentinel   Kind = "return-error-sentinel"
	WrapWithDefault       Kind = "wrap-with-default"
	RetryWithClampedInput Kind = "retry-with-clamped-input"
)

var Kinds = []Kind{ReturnErrorSentinel, WrapWithDefault, RetryWithClampedInput}

// Plan is the structured remediation the oracle picks for a failure.
type Plan struct {
	Strategy Kind     `json:"strategy"`
	Message  string   `json:"message,omitempty"`
	Default  any      `json:"default,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

const ToolName = "choose_remediation"

// Tool is the function the model is forced to call to pick a Plan.
func Tool() openai.FunctionDefinition {
	return openai.FunctionDefinition{
		Name:        ToolName,
		Description: "Choose the remediation that makes the failing function return instead of failing.",
		Parameters:  Schema(),
	}
}

// Schema describes Plan for forced tool-call generation.
func Schema() jsonschema.Definition {
	kinds := make([]string, len(Kinds))
	for i, k := range Kinds {
		kinds[i] = string(k)
	}
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"strategy": {
				Type:        jsonschema.String,
				Enum:        kinds,
				Description: "The remediation to wrap the failing function with.",
			},
			"message": {
				Type:        jsonschema.String,
				Description: "return-error-sentinel: prefix of the returned error message.",
			},
			"default": {
				Type:        jsonschema.String,
				Description: "wrap-with-default: value returned when the function fails.",
			},
			"min": {
				Type:        jsonschema.Number,
				Description: "retry-with-clamped-input: lower bound for numeric arguments.",
			},
			"max": {
				Type:        jsonschema.Number,
				Description: "retry-with-clamped-input: upper bound for numeric arguments.",
			},
			"reason": {
				Type:        jsonschema.String,
				Description: "Why this remediation fits the failure.",
			},
		},
		Required: []string{"strategy", "reason"},
	}
}

func Parse(raw string) (Plan, error) {
	var p Plan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Plan{}, fmt.Errorf("decoding remediation plan: %w", err)
	}
	return p, p.Validate()
}

func (p Plan) Validate() error {
	switch p.Strategy {
	case ReturnErrorSentinel, WrapWithDefault:
		return nil
	case RetryWithClampedInput:
		if p.Min == nil && p.Max == nil {
			return fmt.Errorf("%s needs min or max", p.Strategy)
		}
		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return fmt.Errorf("%s: min %v greater than max %v", p.Strategy, *p.Min, *p.Max)
		}
		return nil
	default:
		return fmt.Errorf("unknown remediation strategy %q", p.Strategy)
	}
}

func (p Plan) String() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// Header renders the plan as a Go comment placed above the source it wraps.
func (p Plan) Header() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("// remediation: %s", p.Strategy))
	switch p.Strategy {
	case ReturnErrorSentinel:
		if p.Message != "" {
			sb.WriteString(fmt.Sprintf(" message=%q", p.Message))
		}
	case WrapWithDefault:
		sb.WriteString(fmt.Sprintf(" default=%v", p.Default))
	case RetryWithClampedInput:
		if p.Min != nil {
			sb.WriteString(fmt.Sprintf(" min=%v", *p.Min))
		}
		if p.Max != nil {
			sb.WriteString(fmt.Sprintf(" max=%v", *p.Max))
		}
	}
	if p.Reason != "" {
		sb.WriteString("\n// reason: " + p.Reason)
	}
	return sb.String()
}

// Apply wraps impl so that calls go through the remediation.
func Apply(impl types.Implementation, p Plan) (*Remediated, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Remediated{inner: impl, plan: p}, nil
}

// Remediated keeps the wrapped implementation's name so it stays reachable
// from the same call site.
type Remediated struct {
	inner types.Implementation
	plan  Plan
}

func (r *Remediated) Name() string { return r.inner.Name() }

func (r *Remediated) Plan() Plan { return r.plan }

func (r *Remediated) Unwrap() types.Implementation { return r.inner }

func (r *Remediated) Call(ctx context.Context, args []any) (any, error) {
	v, err := r.inner.Call(ctx, args)
	if err == nil {
		return v, nil
	}

	switch r.plan.Strategy {
	case ReturnErrorSentinel:
		msg := r.plan.Message
		if msg == "" {
			msg = "error"
		}
		return fmt.Sprintf("%s: %v", msg, err), nil
	case WrapWithDefault:
		return r.plan.Default, nil
	case RetryWithClampedInput:
		return r.inner.Call(ctx, r.clamp(args))
	}
	return nil, err
}

func (r *Remediated) clamp(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch n := a.(type) {
		case float64:
			out[i] = r.bound(n)
		case int:
			out[i] = int(r.bound(float64(n)))
		case int64:
			out[i] = int64(r.bound(float64(n)))
		default:
			out[i] = a
		}
	}
	return out
}

func (r *Remediated) bound(n float64) float64 {
	if r.plan.Min != nil && n < *r.plan.Min {
		n = *r.plan.Min
	}
	if r.plan.Max != nil && n > *r.plan.Max {
		n = *r.plan.Max
	}
	return n
}
