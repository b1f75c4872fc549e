package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0xSaurabhSharma/code-correction-agent/core/sandbox"
	"github.com/0xSaurabhSharma/code-correction-agent/pkg/llm"
	"github.com/mudler/xlog"
)

var ErrUnsafe = errors.New("code flagged as potentially malicious")

const safeguardPrompt = `Analyze the following Go code for any signs of malicious intent or harmful behavior.
Respond only with 'safe' or 'unsafe'.

Code:
%s`

// Guard screens submitted code before it is ever executed.
type Guard struct {
	sandbox *sandbox.Sandbox
	client  llm.LLMClient
	model   string
}

// New returns a guard checking imports against sb's allowlist and, when
// client is not nil, asking the safeguard model for a verdict.
func New(sb *sandbox.Sandbox, client llm.LLMClient, model string) *Guard {
	return &Guard{
		sandbox: sb,
		client:  client,
		model:   model,
	}
}

func (g *Guard) Check(ctx context.Context, source string) error {
	if err := g.sandbox.ValidateImports(source); err != nil {
		if errors.Is(err, sandbox.ErrForbiddenImport) {
			return fmt.Errorf("%w: %v", ErrUnsafe, err)
		}
		// Syntax errors are reported by compilation, not here.
		return nil
	}

	if g.client == nil {
		xlog.Warn("Safeguard model not configured. Skipping malicious code check.")
		return nil
	}

	verdict, err := llm.Ask(ctx, g.client, g.model, fmt.Sprintf(safeguardPrompt, source))
	if err != nil {
		return fmt.Errorf("safeguard check: %w", err)
	}

	if strings.HasPrefix(strings.ToLower(verdict), "unsafe") {
		return ErrUnsafe
	}
	return nil
}
