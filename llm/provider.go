// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific wire formats while exposing a
// consistent ordered-parts interface for tool-using conversations.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// CreateMessage sends one conversation request and returns the
	// model's reply with block order preserved.
	CreateMessage(ctx context.Context, req Request) (Response, error)
}
