package transcript

import (
	"fmt"
	"strings"
)

// Role attributes a turn to one side of the conversation. Tool output is
// never a standalone turn; it is folded into the assistant's turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Fragment is one atomic unit of displayable content derived from a chunk.
type Fragment interface {
	isFragment()

	// Display returns the plain-text rendering of the fragment, used both
	// for terminal output and for projecting prior turns back to the
	// agent loop.
	Display() string
}

// TextFragment is a plain text fragment. IsError marks fragments that
// record a failure and should be rendered with error severity.
type TextFragment struct {
	Text    string
	IsError bool
}

func (TextFragment) isFragment() {}

// Display returns the fragment text, prefixed when it records an error.
func (f TextFragment) Display() string {
	if f.IsError {
		return "Error: " + f.Text
	}
	return f.Text
}

// ImageFragment carries decoded image bytes.
type ImageFragment struct {
	Data []byte
}

func (ImageFragment) isFragment() {}

// Display returns the recorded display form of an image. The raw bytes
// are only meaningful to the rendering surface; everywhere else the
// image is represented by this placeholder.
func (f ImageFragment) Display() string {
	return fmt.Sprintf("[image: %d bytes]", len(f.Data))
}

// Turn is one immutable entry in conversation history.
type Turn struct {
	Role      Role
	Fragments []Fragment
}

// Text joins the display forms of all fragments, in production order.
// This is the lossless role+text projection handed back to the agent loop.
func (t Turn) Text() string {
	parts := make([]string, 0, len(t.Fragments))
	for _, f := range t.Fragments {
		parts = append(parts, f.Display())
	}
	return strings.Join(parts, "\n")
}
