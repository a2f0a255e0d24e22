// DeepSeek Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses OpenAI-compatible API with different base URL
// - Supports deepseek-chat and deepseek-reasoner models
// - DeepSeek models accept no image input; attachments are replaced by a
//   textual placeholder

package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekProvider implements the Provider interface for DeepSeek.
type DeepSeekProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *DeepSeekProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = deepseekBaseURL

	return &DeepSeekProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *DeepSeekProvider) Name() string {
	return "deepseek"
}

// Model returns the current model.
func (p *DeepSeekProvider) Model() string {
	return p.model
}

// CreateMessage sends one conversation request.
func (p *DeepSeekProvider) CreateMessage(ctx context.Context, req Request) (Response, error) {
	dsReq := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            convertToDeepSeekMessages(req.System, req.Messages),
		MaxCompletionTokens: p.maxTokens,
		Temperature:         p.temperature,
	}
	if len(req.Tools) > 0 {
		dsReq.Tools = convertToOpenAITools(req.Tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, dsReq)
	if err != nil {
		return Response{}, fmt.Errorf("create message failed: %w", err)
	}

	var parts []Part
	stopReason := ""
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		stopReason = string(choice.FinishReason)
		if choice.Message.Content != "" {
			parts = append(parts, TextPart{Text: choice.Message.Content})
		}
		for _, tc := range choice.Message.ToolCalls {
			parts = append(parts, ToolUsePart{
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: []byte(tc.Function.Arguments),
			})
		}
	}

	usage := &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}

	return Response{Parts: parts, StopReason: stopReason, Usage: usage}, nil
}

// convertToDeepSeekMessages is the text-only variant of the OpenAI
// conversion: tool result images are flattened to a placeholder note.
func convertToDeepSeekMessages(system string, messages []Message) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		dsMsg := openai.ChatCompletionMessage{Role: openaiRole(msg.Role)}

		for _, part := range msg.Parts {
			switch p := part.(type) {
			case TextPart:
				if dsMsg.Content != "" {
					dsMsg.Content += "\n"
				}
				dsMsg.Content += p.Text
			case ToolUsePart:
				dsMsg.ToolCalls = append(dsMsg.ToolCalls, openai.ToolCall{
					ID:   p.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      p.Name,
						Arguments: string(p.Input),
					},
				})
			case ToolResultPart:
				content := p.Content
				if p.Base64Image != "" {
					if content != "" {
						content += "\n"
					}
					content += "[image output omitted: model does not accept images]"
				}
				if content == "" {
					content = "(no output)"
				}
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    content,
					ToolCallID: p.ToolUseID,
				})
			}
		}

		if dsMsg.Content != "" || len(dsMsg.ToolCalls) > 0 {
			result = append(result, dsMsg)
		}
	}

	return result
}

// Verify DeepSeekProvider implements Provider
var _ Provider = (*DeepSeekProvider)(nil)
