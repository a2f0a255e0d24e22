// Package transcript folds the mixed chunk stream produced by an agent
// loop into a single, incrementally growing chat transcript.
//
// Information Hiding:
// - Chunk variant dispatch hidden behind Normalize
// - Stream buffer lifecycle hidden inside the Accumulator
// - Visibility policy applied in exactly one place
package transcript

import "encoding/json"

// Chunk is one unit of output from the agent loop.
// The variant set is closed; the Accumulator dispatches via type switch.
type Chunk interface {
	isChunk()
}

// TextChunk carries a piece of assistant text.
type TextChunk struct {
	Body string
}

func (TextChunk) isChunk() {}

// ToolUseChunk announces a tool invocation requested by the model.
type ToolUseChunk struct {
	Name  string
	Input json.RawMessage
}

func (ToolUseChunk) isChunk() {}

// ToolResultChunk carries the outcome of a tool execution. Output, Error
// and Base64Image are independent: each present field produces its own
// display fragment.
type ToolResultChunk struct {
	Output      string
	Error       string
	Base64Image string
}

func (ToolResultChunk) isChunk() {}

// Origin tags which channel a chunk was delivered on.
type Origin int

const (
	// OriginAssistant marks chunks produced directly by the model.
	OriginAssistant Origin = iota
	// OriginTool marks chunks produced by tool execution.
	OriginTool
)

// String returns the origin label.
func (o Origin) String() string {
	switch o {
	case OriginAssistant:
		return "assistant"
	case OriginTool:
		return "tool"
	default:
		return "unknown"
	}
}
