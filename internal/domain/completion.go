package domain

import "context"

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest holds the messages and generation parameters of a single
// completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	StrictJSON  bool
}

// CompletionService sends a request to a text-generation backend and returns
// the raw text. Failures are reported as *CompletionError.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
