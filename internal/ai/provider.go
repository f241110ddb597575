package ai

import (
	"context"
	"errors"
	"fmt"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider produces one assistant reply for a conversation.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Moderator reports whether text should be refused.
type Moderator interface {
	Moderate(ctx context.Context, text string) (bool, error)
}

var ErrNotConfigured = errors.New("ai: provider not configured")

// UpstreamError is a non-2xx answer from a model API. Body is kept for
// operator diagnostics.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Body)
}
