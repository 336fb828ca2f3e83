// Package llm generates bot replies for the development backend.
package llm

import "context"

// Roles of a conversation turn
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one earlier message of the conversation
type Turn struct {
	Role    string
	Content string
}

// Request contains the conversation a reply is generated for
type Request struct {
	BotName  string
	Username string
	History  []Turn
	Message  string
}

// Response contains a generated reply
type Response struct {
	Text       string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for reply generators
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Reply generates the bot answer to req.Message
	Reply(ctx context.Context, req Request, model string) (*Response, error)
}
