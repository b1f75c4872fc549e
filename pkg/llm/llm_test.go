package llm_test

import (
	"context"
	"errors"

	"github.com/0xSaurabhSharma/code-correction-agent/pkg/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var _ = Describe("LLM helpers", func() {
	Context("Ask", func() {
		It("sends the prompt as a user message and trims the reply", func() {
			var got openai.ChatCompletionRequest
			mock := &llm.MockClient{
				CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
					got = req
					return llm.TextResponse("  pong \n"), nil
				},
			}

			reply, err := llm.Ask(context.TODO(), mock, "test-model", "ping")
			Expect(err).ToNot(HaveOccurred())
			Expect(reply).To(Equal("pong"))
			Expect(got.Model).To(Equal("test-model"))
			Expect(got.Messages).To(HaveLen(1))
			Expect(got.Messages[0].Role).To(Equal(openai.ChatMessageRoleUser))
			Expect(got.Messages[0].Content).To(Equal("ping"))
		})

		It("fails when the model returns no choices", func() {
			_, err := llm.Ask(context.TODO(), &llm.MockClient{}, "m", "ping")
			Expect(err).To(HaveOccurred())
		})

		It("propagates client errors", func() {
			mock := &llm.MockClient{
				CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
					return openai.ChatCompletionResponse{}, errors.New("unreachable")
				},
			}
			_, err := llm.Ask(context.TODO(), mock, "m", "ping")
			Expect(err).To(MatchError("unreachable"))
		})
	})

	Context("AskJSON", func() {
		tool := openai.FunctionDefinition{
			Name: "pick",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"name": {Type: jsonschema.String},
				},
			},
		}

		It("forces the tool and decodes its arguments", func() {
			mock := &llm.MockClient{
				CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
					Expect(req.Tools).To(HaveLen(1))
					Expect(req.Tools[0].Function.Name).To(Equal("pick"))
					Expect(req.ToolChoice).To(Equal(openai.ToolChoice{
						Type:     openai.ToolTypeFunction,
						Function: openai.ToolFunction{Name: "pick"},
					}))
					Expect(req.Messages[0].Content).To(Equal("choose"))
					return llm.ToolCallResponse("pick", `{"name":"divide"}`), nil
				},
			}

			var dst struct {
				Name string `json:"name"`
			}
			Expect(llm.AskJSON(context.TODO(), mock, "m", "choose", tool, &dst)).To(Succeed())
			Expect(dst.Name).To(Equal("divide"))
		})

		It("fails when the model does not call the tool", func() {
			mock := &llm.MockClient{
				CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
					return llm.TextResponse("{}"), nil
				},
			}
			var dst map[string]any
			err := llm.AskJSON(context.TODO(), mock, "m", "choose", tool, &dst)
			Expect(err).To(MatchError(ContainSubstring("did not call pick")))
		})

		It("fails on arguments that are not JSON", func() {
			mock := &llm.MockClient{
				CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
					return llm.ToolCallResponse("pick", `{"name":`), nil
				},
			}
			var dst map[string]any
			err := llm.AskJSON(context.TODO(), mock, "m", "choose", tool, &dst)
			Expect(err).To(MatchError(ContainSubstring("decoding pick arguments")))
		})
	})

	Context("NewProviderClient", func() {
		It("builds OpenAI compatible clients for openai and groq", func() {
			c, err := llm.NewProviderClient(context.TODO(), "openai", "", "", "1s")
			Expect(err).ToNot(HaveOccurred())
			Expect(c).To(BeAssignableToTypeOf(&openai.Client{}))

			c, err = llm.NewProviderClient(context.TODO(), "groq", "k", "", "1s")
			Expect(err).ToNot(HaveOccurred())
			Expect(c).To(BeAssignableToTypeOf(&openai.Client{}))
		})

		It("rejects unknown providers", func() {
			_, err := llm.NewProviderClient(context.TODO(), "nope", "", "", "")
			Expect(err).To(HaveOccurred())
		})
	})
})
