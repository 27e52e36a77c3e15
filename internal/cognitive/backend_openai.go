package cognitive

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIBackend is a CognitiveBackend implementation over any
// OpenAI-compatible Chat Completions endpoint (§11), selected via
// LLMOS_PROVIDER=openai. Grounded on the reference service's OpenAI client
// adapters, simplified: this module only needs text and tool-call turns,
// not image generation or the Responses API.
type OpenAIBackend struct {
	sdk   sdk.Client
	model string
}

// NewOpenAIBackend builds a backend using apiKey/model against baseURL
// (empty baseURL uses the default OpenAI endpoint).
func NewOpenAIBackend(apiKey, model, baseURL string) *OpenAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIBackend{sdk: sdk.NewClient(opts...), model: model}
}

func (b *OpenAIBackend) params(req Request) sdk.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = b.model
	}
	params := sdk.ChatCompletionNewParams{Model: sdk.ChatModel(model)}
	if req.SystemPrompt != "" {
		params.Messages = append(params.Messages, sdk.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			params.Messages = append(params.Messages, sdk.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, sdk.UserMessage(m.Content))
		}
	}
	if len(req.Tools) > 0 {
		tools := make([]sdk.ChatCompletionToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, sdk.ChatCompletionFunctionTool(sdk.FunctionDefinitionParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				Parameters:  t.Parameters,
			}))
		}
		params.Tools = tools
	}
	return params
}

func (b *OpenAIBackend) OneShot(ctx context.Context, req Request) (Result, error) {
	comp, err := b.sdk.Chat.Completions.New(ctx, b.params(req))
	if err != nil {
		return Result{}, fmt.Errorf("openai one_shot: %w", err)
	}
	if len(comp.Choices) == 0 {
		return Result{}, fmt.Errorf("openai one_shot: no choices returned")
	}

	choice := comp.Choices[0]
	calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, ToolCall{Name: tc.Function.Name, ID: tc.ID, Args: decodeToolArgsJSON(tc.Function.Arguments)})
	}

	cost := estimateCostUSD(string(comp.Model), int(comp.Usage.PromptTokens), int(comp.Usage.CompletionTokens))
	return Result{Success: true, Output: choice.Message.Content, CostUSD: cost, ToolCalls: calls}, nil
}

func (b *OpenAIBackend) Stream(ctx context.Context, req Request, onEvent func(StreamEvent)) error {
	stream := b.sdk.Chat.Completions.NewStreaming(ctx, b.params(req))
	defer func() { _ = stream.Close() }()

	var text strings.Builder
	var calls []ToolCall
	toolArgs := map[int64]*strings.Builder{}
	toolNames := map[int64]string{}
	toolIDs := map[int64]string{}
	var model string
	var promptTokens, completionTokens int

	for stream.Next() {
		chunk := stream.Current()
		if chunk.Model != "" {
			model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			onEvent(StreamEvent{TextDelta: delta.Content})
		}
		for _, tc := range delta.ToolCalls {
			idx := tc.Index
			if tc.Function.Name != "" {
				toolNames[idx] = tc.Function.Name
			}
			if tc.ID != "" {
				toolIDs[idx] = tc.ID
			}
			buf, ok := toolArgs[idx]
			if !ok {
				buf = &strings.Builder{}
				toolArgs[idx] = buf
			}
			buf.WriteString(tc.Function.Arguments)
		}
		if int(chunk.Usage.PromptTokens) > 0 {
			promptTokens = int(chunk.Usage.PromptTokens)
			completionTokens = int(chunk.Usage.CompletionTokens)
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}

	for idx, buf := range toolArgs {
		call := ToolCall{Name: toolNames[idx], ID: toolIDs[idx], Args: decodeToolArgsJSON(buf.String())}
		calls = append(calls, call)
		onEvent(StreamEvent{ToolCall: &call})
	}

	cost := estimateCostUSD(model, promptTokens, completionTokens)
	result := Result{Success: true, Output: text.String(), CostUSD: cost, ToolCalls: calls}
	onEvent(StreamEvent{Done: true, Result: result})
	return nil
}
