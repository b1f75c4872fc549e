package guard_test

import (
	"context"
	"errors"

	. "github.com/0xSaurabhSharma/code-correction-agent/core/guard"
	"github.com/0xSaurabhSharma/code-correction-agent/core/sandbox"
	"github.com/0xSaurabhSharma/code-correction-agent/pkg/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sashabaranov/go-openai"
)

func verdict(answer string) *llm.MockClient {
	return &llm.MockClient{
		CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return llm.TextResponse(answer), nil
		},
	}
}

var _ = Describe("Guard", func() {
	It("flags forbidden imports without asking the model", func() {
		asked := false
		client := &llm.MockClient{
			CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				asked = true
				return llm.TextResponse("safe"), nil
			},
		}
		g := New(sandbox.New(), client, "guard")
		err := g.Check(context.TODO(), "import \"os/exec\"\n\nfunc run() { exec.Command(\"rm\").Run() }")
		Expect(errors.Is(err, ErrUnsafe)).To(BeTrue())
		Expect(asked).To(BeFalse())
	})

	It("follows the safeguard model verdict", func() {
		src := "func divide(a, b int) int { return a / b }"
		Expect(New(sandbox.New(), verdict("safe"), "guard").Check(context.TODO(), src)).To(Succeed())
		Expect(New(sandbox.New(), verdict("Unsafe."), "guard").Check(context.TODO(), src)).To(MatchError(ErrUnsafe))
	})

	It("skips the model check when no safeguard is configured", func() {
		Expect(New(sandbox.New(), nil, "").Check(context.TODO(), "func f() {}")).To(Succeed())
	})
})
