package llm

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestResponseToolUses(t *testing.T) {
	resp := Response{Parts: []Part{
		TextPart{Text: "Let me check."},
		ToolUsePart{ID: "call_1", Name: "bash", Input: []byte(`{"command":"ls"}`)},
		TextPart{Text: "and also"},
		ToolUsePart{ID: "call_2", Name: "screenshot", Input: []byte(`{}`)},
	}}

	uses := resp.ToolUses()
	if len(uses) != 2 {
		t.Fatalf("expected 2 tool uses, got %d", len(uses))
	}
	if uses[0].ID != "call_1" || uses[1].ID != "call_2" {
		t.Errorf("tool uses out of order: %v, %v", uses[0].ID, uses[1].ID)
	}
}

func TestConvertToAnthropicMessagesToolResult(t *testing.T) {
	messages := []Message{
		NewUserTextMessage("take a screenshot"),
		{Role: RoleAssistant, Parts: []Part{
			TextPart{Text: "Sure."},
			ToolUsePart{ID: "toolu_1", Name: "screenshot", Input: []byte(`{}`)},
		}},
		{Role: RoleUser, Parts: []Part{
			ToolResultPart{ToolUseID: "toolu_1", ToolName: "screenshot", Content: "done", Base64Image: "aGVsbG8="},
		}},
	}

	params := convertToAnthropicMessages(messages)
	if len(params) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(params))
	}
	// The assistant message keeps text and tool use in order.
	assistant := params[1]
	if len(assistant.Content) != 2 {
		t.Fatalf("expected 2 assistant blocks, got %d", len(assistant.Content))
	}
	if assistant.Content[1].OfToolUse == nil || assistant.Content[1].OfToolUse.ID != "toolu_1" {
		t.Errorf("expected tool_use block second, got %+v", assistant.Content[1])
	}
	// The tool result carries both text and image content.
	result := params[2]
	if len(result.Content) != 1 || result.Content[0].OfToolResult == nil {
		t.Fatalf("expected a single tool_result block, got %+v", result.Content)
	}
	blocks := result.Content[0].OfToolResult.Content
	if len(blocks) != 2 || blocks[0].OfText == nil || blocks[1].OfImage == nil {
		t.Errorf("expected text+image tool result content, got %+v", blocks)
	}
}

func TestConvertToOpenAIMessagesImageFollowUp(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Parts: []Part{
			ToolResultPart{ToolUseID: "call_1", ToolName: "screenshot", Content: "captured", Base64Image: "aGVsbG8="},
		}},
	}

	oai := convertToOpenAIMessages("be helpful", messages)
	if len(oai) != 3 {
		t.Fatalf("expected system + tool + image follow-up, got %d messages", len(oai))
	}
	if oai[0].Role != "system" {
		t.Errorf("expected system message first, got %q", oai[0].Role)
	}
	if oai[1].Role != "tool" || oai[1].ToolCallID != "call_1" {
		t.Errorf("expected tool message with call ID, got %+v", oai[1])
	}
	followUp := oai[2]
	if followUp.Role != "user" || len(followUp.MultiContent) != 1 {
		t.Fatalf("expected user image follow-up, got %+v", followUp)
	}
	if !strings.HasPrefix(followUp.MultiContent[0].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("expected data URL, got %q", followUp.MultiContent[0].ImageURL.URL)
	}
}

func TestConvertToDeepSeekMessagesFlattensImages(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Parts: []Part{
			ToolResultPart{ToolUseID: "call_1", ToolName: "screenshot", Base64Image: "aGVsbG8="},
		}},
	}

	ds := convertToDeepSeekMessages("", messages)
	if len(ds) != 1 {
		t.Fatalf("expected 1 message, got %d", len(ds))
	}
	if !strings.Contains(ds[0].Content, "image output omitted") {
		t.Errorf("expected image placeholder, got %q", ds[0].Content)
	}
}

func TestConvertToGeminiMessagesFunctionResponse(t *testing.T) {
	messages := []Message{
		{Role: RoleAssistant, Parts: []Part{
			ToolUsePart{ID: "bash", Name: "bash", Input: []byte(`{"command":"ls"}`)},
		}},
		{Role: RoleUser, Parts: []Part{
			ToolResultPart{ToolUseID: "bash", ToolName: "bash", Content: "file.txt", Base64Image: "aGVsbG8="},
		}},
	}

	contents := convertToGeminiMessages(messages)
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[0].Parts[0].FunctionCall == nil {
		t.Errorf("expected function call part, got %+v", contents[0].Parts[0])
	}
	result := contents[1]
	if len(result.Parts) != 2 {
		t.Fatalf("expected function response + inline image, got %d parts", len(result.Parts))
	}
	fr := result.Parts[0].FunctionResponse
	if fr == nil || fr.Name != "bash" {
		t.Errorf("expected function response addressed by name, got %+v", result.Parts[0])
	}
	blob := result.Parts[1].InlineData
	if blob == nil || blob.MIMEType != "image/png" || string(blob.Data) != "hello" {
		t.Errorf("expected decoded inline PNG, got %+v", result.Parts[1])
	}
}

func TestParseProviderType(t *testing.T) {
	cases := map[string]ProviderType{
		"anthropic": ProviderAnthropic,
		"Claude":    ProviderAnthropic,
		"openai":    ProviderOpenAI,
		"deepseek":  ProviderDeepSeek,
		"google":    ProviderGemini,
	}
	for input, want := range cases {
		got, err := ParseProviderType(input)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("%q: expected %v, got %v", input, want, got)
		}
	}
	if _, err := ParseProviderType("mystery"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestBuilderDefaults(t *testing.T) {
	provider, err := ProviderAnthropic.APIKey("sk-ant-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "anthropic" {
		t.Errorf("expected anthropic, got %q", provider.Name())
	}
	if provider.Model() != ModelAnthropicClaudeOpus45 {
		t.Errorf("expected default model, got %q", provider.Model())
	}
}

// Error messages from failed requests must not leak the API key.
func TestAnthropicErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-ant-REDACTED"
	provider := NewAnthropicProvider(testKey, ModelAnthropicClaudeSonnet4, 100, 0.7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.CreateMessage(ctx, Request{
		Messages: []Message{NewUserTextMessage("test")},
	})
	if err == nil {
		t.Skip("Expected error with invalid API key, but got success - skipping leak test")
	}

	errStr := err.Error()
	if strings.Contains(errStr, testKey) {
		t.Errorf("Anthropic error message leaked API key: %v", errStr)
	}
	if strings.Contains(errStr, "x-api-key:") || strings.Contains(errStr, "X-API-Key:") {
		t.Errorf("Anthropic error exposed API key header: %v", errStr)
	}
}

func TestOpenAIErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-test-invalid-key-12345xyz"
	provider := NewOpenAIProvider(testKey, ModelOpenAIGPT4o, 100, 0.7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.CreateMessage(ctx, Request{
		Messages: []Message{NewUserTextMessage("test")},
	})
	if err == nil {
		t.Skip("Expected error with invalid API key, but got success - skipping leak test")
	}

	errStr := err.Error()
	if strings.Contains(errStr, testKey) {
		t.Errorf("OpenAI error message leaked API key: %v", errStr)
	}
	if strings.Contains(errStr, "Authorization:") {
		t.Errorf("OpenAI error exposed Authorization header: %v", errStr)
	}
}

// TestGeminiInitErrorPreserved verifies Gemini returns initialization errors.
func TestGeminiInitErrorPreserved(t *testing.T) {
	provider := NewGeminiProvider("", ModelGeminiFlash2, 100, 0.7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.CreateMessage(ctx, Request{
		Messages: []Message{NewUserTextMessage("test")},
	})
	if err == nil {
		t.Error("Expected initialization error to be returned, got nil")
		return
	}
	if !strings.Contains(err.Error(), "failed to initialize") {
		t.Errorf("Expected initialization error, got: %v", err)
	}
}
