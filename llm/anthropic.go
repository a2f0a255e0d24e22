// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Tool result encoding, including image attachments

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string, maxTokens uint32, temperature float32) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:      client,
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// CreateMessage sends one conversation request.
func (p *AnthropicProvider) CreateMessage(ctx context.Context, req Request) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    convertToAnthropicMessages(req.Messages),
		Temperature: anthropic.Float(p.temperature),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToAnthropicTools(req.Tools)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("create message failed: %w", err)
	}

	var parts []Part
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, TextPart{Text: variant.Text})
		case anthropic.ToolUseBlock:
			inputJSON, _ := json.Marshal(variant.Input)
			parts = append(parts, ToolUsePart{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: inputJSON,
			})
		}
	}

	var usage *TokenUsage
	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		usage = &TokenUsage{
			PromptTokens:     uint32(message.Usage.InputTokens),
			CompletionTokens: uint32(message.Usage.OutputTokens),
			TotalTokens:      uint32(message.Usage.InputTokens + message.Usage.OutputTokens),
		}
	}

	return Response{
		Parts:      parts,
		StopReason: string(message.StopReason),
		Usage:      usage,
	}, nil
}

// convertToAnthropicMessages converts ordered-parts messages to the
// Messages API format. Tool results travel inside user messages.
func convertToAnthropicMessages(messages []Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		param := anthropic.MessageParam{Role: anthropicRole(msg.Role)}
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case TextPart:
				if p.Text != "" {
					param.Content = append(param.Content, anthropic.NewTextBlock(p.Text))
				}
			case ToolUsePart:
				var input map[string]interface{}
				_ = json.Unmarshal(p.Input, &input)
				param.Content = append(param.Content, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    p.ID,
						Name:  p.Name,
						Input: input,
					},
				})
			case ToolResultPart:
				param.Content = append(param.Content, convertToolResult(p))
			}
		}
		if len(param.Content) == 0 {
			continue
		}
		result = append(result, param)
	}

	return result
}

// convertToolResult builds a tool_result block, attaching an image block
// when the result carries one.
func convertToolResult(p ToolResultPart) anthropic.ContentBlockParamUnion {
	block := anthropic.ToolResultBlockParam{
		ToolUseID: p.ToolUseID,
		IsError:   anthropic.Bool(p.IsError),
	}

	if p.Content != "" {
		block.Content = append(block.Content, anthropic.ToolResultBlockParamContentUnion{
			OfText: &anthropic.TextBlockParam{Text: p.Content},
		})
	}
	if p.Base64Image != "" {
		block.Content = append(block.Content, anthropic.ToolResultBlockParamContentUnion{
			OfImage: &anthropic.ImageBlockParam{
				Source: anthropic.ImageBlockParamSourceUnion{
					OfBase64: &anthropic.Base64ImageSourceParam{
						Data:      p.Base64Image,
						MediaType: anthropic.Base64ImageSourceMediaTypeImagePNG,
					},
				},
			},
		})
	}

	return anthropic.ContentBlockParamUnion{OfToolResult: &block}
}

func anthropicRole(role MessageRole) anthropic.MessageParamRole {
	if role == RoleAssistant {
		return anthropic.MessageParamRoleAssistant
	}
	return anthropic.MessageParamRoleUser
}

// convertToAnthropicTools converts tool definitions to Anthropic format.
func convertToAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		// Extract properties and required from the full schema
		properties, _ := t.Parameters["properties"].(map[string]interface{})
		required, _ := t.Parameters["required"].([]string)

		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
