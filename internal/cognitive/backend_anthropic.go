package cognitive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rs/zerolog/log"
)

const anthropicDefaultMaxTokens int64 = 4096

// AnthropicBackend is the primary CognitiveBackend implementation (§4.11),
// grounded on the reference service's Anthropic client: build messages,
// call Messages.New (or NewStreaming), and translate the response into this
// package's provider-agnostic Result/StreamEvent shape.
type AnthropicBackend struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicBackend builds a backend using apiKey/model, optionally
// against a custom baseURL (e.g. a compatible proxy).
func NewAnthropicBackend(apiKey, model, baseURL string) *AnthropicBackend {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &AnthropicBackend{sdk: anthropic.NewClient(opts...), model: model, maxTokens: anthropicDefaultMaxTokens}
}

func (b *AnthropicBackend) params(req Request) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = b.model
	}
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  toAnthropicMessages(req.Messages),
		System:    toAnthropicSystem(req.SystemPrompt),
		Tools:     toAnthropicTools(req.Tools),
		MaxTokens: b.maxTokens,
	}
}

func (b *AnthropicBackend) OneShot(ctx context.Context, req Request) (Result, error) {
	resp, err := b.sdk.Messages.New(ctx, b.params(req))
	if err != nil {
		return Result{}, fmt.Errorf("anthropic one_shot: %w", err)
	}

	var text strings.Builder
	var calls []ToolCall
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			calls = append(calls, ToolCall{Name: variant.Name, ID: variant.ID, Args: decodeToolArgs(variant.Input)})
		}
	}

	cost := estimateCostUSD(string(resp.Model), int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	return Result{Success: true, Output: text.String(), CostUSD: cost, ToolCalls: calls}, nil
}

func (b *AnthropicBackend) Stream(ctx context.Context, req Request, onEvent func(StreamEvent)) error {
	stream := b.sdk.Messages.NewStreaming(ctx, b.params(req))
	defer func() {
		if err := stream.Close(); err != nil {
			log.Debug().Err(err).Msg("anthropic_stream_close_error")
		}
	}()

	var acc anthropic.Message
	var text strings.Builder
	var calls []ToolCall
	toolBuffers := map[int64]*strings.Builder{}
	toolNames := map[int64]string{}
	toolIDs := map[int64]string{}

	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			log.Debug().Err(err).Msg("anthropic_accumulate_error")
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if block, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				b := &strings.Builder{}
				toolBuffers[ev.Index] = b
				toolNames[ev.Index] = block.Name
				toolIDs[ev.Index] = block.ID
			}
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text != "" {
					text.WriteString(delta.Text)
					onEvent(StreamEvent{TextDelta: delta.Text})
				}
			case anthropic.InputJSONDelta:
				if buf := toolBuffers[ev.Index]; buf != nil {
					buf.WriteString(delta.PartialJSON)
				}
			}
		case anthropic.ContentBlockStopEvent:
			if buf, ok := toolBuffers[ev.Index]; ok {
				call := ToolCall{Name: toolNames[ev.Index], ID: toolIDs[ev.Index], Args: decodeToolArgsJSON(buf.String())}
				calls = append(calls, call)
				onEvent(StreamEvent{ToolCall: &call})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic stream: %w", err)
	}

	cost := estimateCostUSD(string(acc.Model), int(acc.Usage.InputTokens), int(acc.Usage.OutputTokens))
	result := Result{Success: true, Output: text.String(), CostUSD: cost, ToolCalls: calls}
	onEvent(StreamEvent{Done: true, Result: result})
	return nil
}

func toAnthropicSystem(prompt string) []anthropic.TextBlockParam {
	if prompt == "" {
		return nil
	}
	return []anthropic.TextBlockParam{{Text: prompt}}
}

func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func toAnthropicTools(schemas []ToolSchema) []anthropic.ToolUnionParam {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		schema := anthropic.ToolInputSchemaParam{Properties: s.Parameters}
		param := anthropic.ToolParam{Name: s.Name, InputSchema: schema}
		if s.Description != "" {
			param.Description = anthropic.String(s.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out
}

func decodeToolArgs(raw json.RawMessage) map[string]any {
	return decodeToolArgsJSON(string(raw))
}

func decodeToolArgsJSON(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}
