package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

func NewGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GenAI adapts a Gemini client to LLMClient. Forced tool calls are served
// with JSON mode: the tool schema is put in the system instruction and the
// reply is returned as the tool call arguments.
type GenAI struct {
	client *genai.Client
}

func NewGenAI(client *genai.Client) *GenAI {
	return &GenAI{client: client}
}

func (g *GenAI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	config := &genai.GenerateContentConfig{}
	if req.Temperature != 0 {
		temperature := req.Temperature
		config.Temperature = &temperature
	}

	var system []string
	var contents []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case openai.ChatMessageRoleSystem:
			system = append(system, msg.Content)
		case openai.ChatMessageRoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	var tool *openai.FunctionDefinition
	if len(req.Tools) > 0 && req.Tools[0].Function != nil {
		tool = req.Tools[0].Function
		schema, err := json.Marshal(tool.Parameters)
		if err != nil {
			return openai.ChatCompletionResponse{}, fmt.Errorf("encoding tool schema: %w", err)
		}
		system = append(system, fmt.Sprintf("Reply only with a JSON object matching this JSON schema:\n%s", schema))
		config.ResponseMIMEType = "application/json"
	}

	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("Gemini API call failed: %w", err)
	}
	if result == nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("empty response from Gemini API")
	}

	if tool != nil {
		resp := ToolCallResponse(tool.Name, result.Text())
		resp.Model = req.Model
		return resp, nil
	}

	resp := TextResponse(result.Text())
	resp.Model = req.Model
	return resp, nil
}
