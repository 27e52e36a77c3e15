package cognitive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GoogleBackend is a CognitiveBackend implementation over the Gemini API
// (§11), selected via LLMOS_PROVIDER=google. Grounded on the reference
// service's Google client: build genai.Content turns, call
// Models.GenerateContent (or GenerateContentStream), and translate the
// response into this package's provider-agnostic Result/StreamEvent shape.
type GoogleBackend struct {
	client *genai.Client
	model  string
}

// NewGoogleBackend builds a backend using apiKey/model against the Gemini
// API. model defaults to "gemini-1.5-flash" when empty.
func NewGoogleBackend(ctx context.Context, apiKey, model string) (*GoogleBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: strings.TrimSpace(apiKey)})
	if err != nil {
		return nil, fmt.Errorf("google backend: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GoogleBackend{client: client, model: model}, nil
}

func (b *GoogleBackend) pickModel(model string) string {
	if model == "" {
		return b.model
	}
	return model
}

func (b *GoogleBackend) OneShot(ctx context.Context, req Request) (Result, error) {
	model := b.pickModel(req.Model)
	contents, err := toGoogleContents(req.SystemPrompt, req.Messages)
	if err != nil {
		return Result{}, fmt.Errorf("google one_shot: %w", err)
	}
	tools, toolCfg := adaptGoogleTools(req.Tools)

	resp, err := b.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{Tools: tools, ToolConfig: toolCfg})
	if err != nil {
		return Result{}, fmt.Errorf("google one_shot: %w", err)
	}

	text, calls, err := fromGoogleResponse(resp)
	if err != nil {
		return Result{}, fmt.Errorf("google one_shot: %w", err)
	}

	input, output := googleUsage(resp)
	cost := estimateCostUSD(model, input, output)
	return Result{Success: true, Output: text, CostUSD: cost, ToolCalls: calls}, nil
}

func (b *GoogleBackend) Stream(ctx context.Context, req Request, onEvent func(StreamEvent)) error {
	model := b.pickModel(req.Model)
	contents, err := toGoogleContents(req.SystemPrompt, req.Messages)
	if err != nil {
		return fmt.Errorf("google stream: %w", err)
	}
	tools, toolCfg := adaptGoogleTools(req.Tools)

	var text strings.Builder
	var calls []ToolCall
	var input, output int

	stream := b.client.Models.GenerateContentStream(ctx, model, contents, &genai.GenerateContentConfig{Tools: tools, ToolConfig: toolCfg})
	for resp, err := range stream {
		if err != nil {
			return fmt.Errorf("google stream: %w", err)
		}
		if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		in, out := googleUsage(resp)
		if in > 0 {
			input, output = in, out
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				text.WriteString(part.Text)
				onEvent(StreamEvent{TextDelta: part.Text})
			}
			if part.FunctionCall != nil {
				call := ToolCall{Name: part.FunctionCall.Name, ID: part.FunctionCall.ID, Args: part.FunctionCall.Args}
				calls = append(calls, call)
				onEvent(StreamEvent{ToolCall: &call})
			}
		}
	}

	cost := estimateCostUSD(model, input, output)
	result := Result{Success: true, Output: text.String(), CostUSD: cost, ToolCalls: calls}
	onEvent(StreamEvent{Done: true, Result: result})
	return nil
}

func toGoogleContents(systemPrompt string, msgs []Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(msgs)+1)
	if systemPrompt != "" {
		contents = append(contents, genai.NewContentFromText("[system] "+systemPrompt, genai.RoleUser))
	}
	for _, m := range msgs {
		switch m.Role {
		case "assistant":
			parts := []*genai.Part{}
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, tc.Args))
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case "tool":
			respMap := map[string]any{}
			if trimmed := strings.TrimSpace(m.Content); trimmed != "" {
				if err := json.Unmarshal([]byte(trimmed), &respMap); err != nil {
					respMap = map[string]any{"output": m.Content}
				}
			}
			part := genai.NewPartFromFunctionResponse(m.ToolID, respMap)
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("messages required")
	}
	return contents, nil
}

func adaptGoogleTools(schemas []ToolSchema) ([]*genai.Tool, *genai.ToolConfig) {
	if len(schemas) == 0 {
		return nil, nil
	}
	fd := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		fd = append(fd, &genai.FunctionDeclaration{
			Name:                 s.Name,
			Description:          s.Description,
			ParametersJsonSchema: s.Parameters,
		})
	}
	tool := &genai.Tool{FunctionDeclarations: fd}
	toolCfg := &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto}}
	return []*genai.Tool{tool}, toolCfg
}

func fromGoogleResponse(resp *genai.GenerateContentResponse) (string, []ToolCall, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", nil, fmt.Errorf("no candidates in google response")
	}
	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonSafety:
		return "", nil, fmt.Errorf("response blocked by safety filters")
	case genai.FinishReasonRecitation:
		return "", nil, fmt.Errorf("response blocked due to recitation")
	}
	if candidate.Content == nil {
		return "", nil, nil
	}

	var text strings.Builder
	var calls []ToolCall
	idx := 0
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			idx++
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call-%d", idx)
			}
			calls = append(calls, ToolCall{Name: part.FunctionCall.Name, ID: id, Args: part.FunctionCall.Args})
		}
	}
	return text.String(), calls, nil
}

func googleUsage(resp *genai.GenerateContentResponse) (input, output int) {
	if resp == nil || resp.UsageMetadata == nil {
		return 0, 0
	}
	return int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount)
}
