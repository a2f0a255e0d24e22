// Package llm provides shared data models for LLM providers.
//
// Messages are ordered sequences of parts rather than a single content
// string: a model response can interleave text and tool invocations, and
// that order is significant to anything replaying the conversation.
package llm

import "encoding/json"

// MessageRole attributes a message to one side of the exchange.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Part is one ordered element of a message. Variants: TextPart,
// ToolUsePart, ToolResultPart.
type Part interface {
	isPart()
}

// TextPart is plain text content.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// ToolUsePart is a tool invocation requested by the model.
type ToolUsePart struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (ToolUsePart) isPart() {}

// ToolResultPart carries the outcome of a tool invocation back to the
// model. ToolName is kept alongside the ID because some providers address
// results by function name rather than call ID. Base64Image, when set, is
// a base64-encoded PNG attached to the result.
type ToolResultPart struct {
	ToolUseID   string
	ToolName    string
	Content     string
	IsError     bool
	Base64Image string
}

func (ToolResultPart) isPart() {}

// Message is one turn in the provider conversation.
type Message struct {
	Role  MessageRole
	Parts []Part
}

// NewUserTextMessage builds a user message with a single text part.
func NewUserTextMessage(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantTextMessage builds an assistant message with a single text part.
func NewAssistantTextMessage(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{TextPart{Text: text}}}
}

// ToolDefinition defines a tool the model may call. Parameters is a JSON
// Schema object.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Request is one provider invocation.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// Response is the model's reply. Parts preserves the order blocks were
// produced in, including interleaved text and tool invocations.
type Response struct {
	Parts      []Part
	StopReason string
	Usage      *TokenUsage
}

// ToolUses returns the tool invocations in the response, in order.
func (r Response) ToolUses() []ToolUsePart {
	var uses []ToolUsePart
	for _, p := range r.Parts {
		if u, ok := p.(ToolUsePart); ok {
			uses = append(uses, u)
		}
	}
	return uses
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}
