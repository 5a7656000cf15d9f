// Package ai abstracts the text generation provider the worker calls
// when producing replies. The provider boundary is an external network
// dependency, so the production path wraps it with a rate limiter and
// a circuit breaker.
package ai

import (
	"context"
	"errors"

	"go.botmind.dev/internal/domain"
)

// ErrUnavailable is returned when the provider cannot be called right
// now, because the circuit is open or the rate limit wait was cut
// short by context cancellation.
var ErrUnavailable = errors.New("ai provider unavailable")

// Request carries everything the provider needs to generate a reply.
type Request struct {
	// SystemInstruction frames the model's persona and rules. Empty
	// when no instruction is active.
	SystemInstruction string

	// History is the recent conversation, oldest first.
	History []*domain.ChatMessage

	// Prompt is the user message to respond to.
	Prompt string
}

// Generator produces model text for a request.
type Generator interface {
	// Generate returns the model's reply. Implementations must honor
	// ctx cancellation.
	Generate(ctx context.Context, req Request) (string, error)
}

// Provider names accepted in configuration.
const (
	ProviderGemini = "gemini"
	ProviderFake   = "fake"
)
