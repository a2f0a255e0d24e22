// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Tool result encoding; images travel as data-URL parts

package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// CreateMessage sends one conversation request.
func (p *OpenAIProvider) CreateMessage(ctx context.Context, req Request) (Response, error) {
	oaiReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(req.System, req.Messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
	if len(req.Tools) > 0 {
		oaiReq.Tools = convertToOpenAITools(req.Tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, oaiReq)
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

// convertToOpenAIMessages flattens ordered-parts messages into the Chat
// Completions shape. Tool results become tool-role messages; an attached
// image cannot ride in a tool-role message, so it follows as a user
// message with an image_url part.
func convertToOpenAIMessages(system string, messages []Message) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{Role: openaiRole(msg.Role)}
		var imageFollowUps []openai.ChatCompletionMessage

		for _, part := range msg.Parts {
			switch p := part.(type) {
			case TextPart:
				if oaiMsg.Content != "" {
					oaiMsg.Content += "\n"
				}
				oaiMsg.Content += p.Text
			case ToolUsePart:
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   p.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      p.Name,
						Arguments: string(p.Input),
					},
				})
			case ToolResultPart:
				content := p.Content
				if p.IsError && content == "" {
					content = "tool execution failed"
				}
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    content,
					ToolCallID: p.ToolUseID,
				})
				if p.Base64Image != "" {
					imageFollowUps = append(imageFollowUps, openai.ChatCompletionMessage{
						Role: openai.ChatMessageRoleUser,
						MultiContent: []openai.ChatMessagePart{{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL: "data:image/png;base64," + p.Base64Image,
							},
						}},
					})
				}
			}
		}

		if oaiMsg.Content != "" || len(oaiMsg.ToolCalls) > 0 {
			result = append(result, oaiMsg)
		}
		result = append(result, imageFollowUps...)
	}

	return result
}

func openaiRole(role MessageRole) string {
	if role == RoleAssistant {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
