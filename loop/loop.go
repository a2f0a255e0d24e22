// Package loop drives the model/tool conversation cycle.
//
// Information Hiding:
// - Provider invocation and message assembly hidden
// - Tool dispatch and result routing hidden
// - Iteration limits and image history trimming internalized
package loop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomworks/loom/llm"
	"github.com/loomworks/loom/tools"
	"github.com/loomworks/loom/transcript"
)

// DefaultMaxIterations bounds one turn's model/tool cycles.
const DefaultMaxIterations = 20

const defaultSystemPrompt = `You are an assistant with access to a Linux machine. ` +
	`You can run shell commands with the bash tool, capture the display with the ` +
	`screenshot tool, and view or edit files with the str_replace_editor tool. ` +
	`When a task needs multiple steps, work through them one tool call at a time ` +
	`and verify each result before moving on.`

// Loop runs the sampling cycle: call the model, stream its blocks,
// execute requested tools, feed results back, repeat until the model
// stops asking for tools.
type Loop struct {
	provider llm.Provider
	registry *tools.Registry
	executor *tools.Executor
	system   string
}

// New creates a loop over the given provider and tool registry.
func New(provider llm.Provider, registry *tools.Registry) *Loop {
	return &Loop{
		provider: provider,
		registry: registry,
		executor: tools.NewDefaultExecutor(),
		system:   defaultSystemPrompt,
	}
}

// WithExecutor replaces the tool executor.
func (l *Loop) WithExecutor(executor *tools.Executor) *Loop {
	l.executor = executor
	return l
}

// WithSystemPrompt replaces the base system prompt.
func (l *Loop) WithSystemPrompt(prompt string) *Loop {
	l.system = prompt
	return l
}

// Run executes one conversation turn against the model.
//
// Every response block is forwarded through the callbacks in production
// order before the next provider call. Returns nil when the model
// finishes without requesting tools; any provider failure aborts the
// turn.
func (l *Loop) Run(ctx context.Context, prompt []transcript.PromptMessage, cb transcript.Callbacks, opts transcript.LoopOptions) error {
	system := l.system
	if opts.SystemPromptSuffix != "" {
		system += " " + opts.SystemPromptSuffix
	}

	messages := convertPrompt(prompt)
	definitions := l.toolDefinitions()

	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		if opts.OnlyNMostRecentImages > 0 {
			trimImageHistory(messages, opts.OnlyNMostRecentImages)
		}

		resp, err := l.provider.CreateMessage(ctx, llm.Request{
			System:   system,
			Messages: messages,
			Tools:    definitions,
		})
		if err != nil {
			return fmt.Errorf("model call failed: %w", err)
		}

		for _, part := range resp.Parts {
			switch p := part.(type) {
			case llm.TextPart:
				cb.OnAssistant(transcript.TextChunk{Body: p.Text})
			case llm.ToolUsePart:
				cb.OnAssistant(transcript.ToolUseChunk{Name: p.Name, Input: p.Input})
			}
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Parts: resp.Parts})

		toolUses := resp.ToolUses()
		if len(toolUses) == 0 {
			return nil
		}

		var resultParts []llm.Part
		for _, use := range toolUses {
			result := l.runTool(ctx, use)

			chunk := transcript.ToolResultChunk{
				Output:      result.Output,
				Base64Image: result.Base64Image,
			}
			if result.Error != nil {
				chunk.Error = result.Error.Error()
			}
			cb.OnTool(chunk)

			part := llm.ToolResultPart{
				ToolUseID:   use.ID,
				ToolName:    use.Name,
				Content:     result.Output,
				Base64Image: result.Base64Image,
			}
			if result.Error != nil {
				part.Content = result.Error.Error()
				part.IsError = true
			}
			resultParts = append(resultParts, part)
		}

		messages = append(messages, llm.Message{Role: llm.RoleUser, Parts: resultParts})
	}

	return fmt.Errorf("turn exceeded %d iterations without completing", maxIterations)
}

// runTool executes one requested tool, folding lookup failures into the
// result so the model hears about them.
func (l *Loop) runTool(ctx context.Context, use llm.ToolUsePart) tools.ToolResult {
	tool, ok := l.registry.Get(use.Name)
	if !ok {
		return tools.FailureResultf("unknown tool '%s'", use.Name)
	}

	input := use.Input
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if err := tool.Validate(input); err != nil {
		return tools.FailureResultf("invalid input for tool '%s': %v", use.Name, err)
	}

	result, err := l.executor.Execute(ctx, tool, input)
	if err != nil {
		return tools.FailureResultf("tool '%s' aborted: %v", use.Name, err)
	}
	return result
}

// toolDefinitions projects the registry into provider tool definitions.
func (l *Loop) toolDefinitions() []llm.ToolDefinition {
	metadata := l.registry.List()
	definitions := make([]llm.ToolDefinition, 0, len(metadata))
	for _, m := range metadata {
		definitions = append(definitions, llm.ToolDefinition{
			Name:        m.Name,
			Description: m.Description,
			Parameters:  m.Schema(),
		})
	}
	return definitions
}

// convertPrompt maps the accumulator's role+text projection into provider
// messages.
func convertPrompt(prompt []transcript.PromptMessage) []llm.Message {
	messages := make([]llm.Message, 0, len(prompt))
	for _, m := range prompt {
		role := llm.RoleUser
		if m.Role == transcript.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{
			Role:  role,
			Parts: []llm.Part{llm.TextPart{Text: m.Text}},
		})
	}
	return messages
}

// Run satisfies the accumulator's loop contract.
var _ transcript.AgentLoop = (*Loop)(nil)
