package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mudler/xlog"
	"github.com/sashabaranov/go-openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGoogle = "google"

	GroqBaseURL = "https://api.groq.com/openai/v1"
)

// LLMClient is the subset of the OpenAI client the oracle relies on.
// *openai.Client satisfies it directly; other providers are adapted to it.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func NewClient(APIKey, URL, timeout string) *openai.Client {
	// Set up OpenAI client
	if APIKey == "" {
		APIKey = "sk-xxx"
	}
	config := openai.DefaultConfig(APIKey)
	if URL != "" {
		config.BaseURL = URL
	}

	dur, err := time.ParseDuration(timeout)
	if err != nil {
		dur = 150 * time.Second
	}

	config.HTTPClient = &http.Client{
		Timeout: dur,
	}
	return openai.NewClientWithConfig(config)
}

// NewProviderClient returns a chat client for the named provider.
// groq is served through its OpenAI compatible endpoint.
func NewProviderClient(ctx context.Context, provider, APIKey, URL, timeout string) (LLMClient, error) {
	switch strings.ToLower(provider) {
	case "", ProviderOpenAI:
		return NewClient(APIKey, URL, timeout), nil
	case ProviderGroq:
		if URL == "" {
			URL = GroqBaseURL
		}
		return NewClient(APIKey, URL, timeout), nil
	case ProviderGoogle:
		client, err := NewGenAIClient(ctx, APIKey)
		if err != nil {
			return nil, err
		}
		return NewGenAI(client), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}

// Ask sends a single user prompt and returns the trimmed reply.
func Ask(ctx context.Context, client LLMClient, model, prompt string) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned by model %s", model)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// AskJSON sends prompt with tool as the only tool and forces the model to
// call it, then decodes the call arguments into dst.
func AskJSON(ctx context.Context, client LLMClient, model, prompt string, tool openai.FunctionDefinition, dst any) error {
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Tools: []openai.Tool{
			{
				Type:     openai.ToolTypeFunction,
				Function: &tool,
			},
		},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: tool.Name},
		},
	})
	if err != nil {
		return err
	}

	if len(resp.Choices) == 0 {
		return fmt.Errorf("no choices returned by model %s", model)
	}

	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name != tool.Name {
			continue
		}
		xlog.Debug("Structured reply", "tool", tool.Name, "arguments", call.Function.Arguments)
		if err := json.Unmarshal([]byte(call.Function.Arguments), dst); err != nil {
			return fmt.Errorf("decoding %s arguments: %w", tool.Name, err)
		}
		return nil
	}
	return fmt.Errorf("model %s did not call %s", model, tool.Name)
}
