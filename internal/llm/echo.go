package llm

import (
	"context"
	"fmt"
)

// EchoName is the identifier of the built-in echo provider
const EchoName = "echo"

// Echo answers every message by acknowledging it. It needs no credentials.
type Echo struct{}

func (Echo) Name() string         { return EchoName }
func (Echo) DefaultModel() string { return EchoName }
func (Echo) IsConfigured() bool   { return true }

// Reply returns "<bot> received: <message>"
func (Echo) Reply(_ context.Context, req Request, _ string) (*Response, error) {
	return &Response{
		Text:  fmt.Sprintf("%s received: %s", req.BotName, req.Message),
		Model: EchoName,
	}, nil
}
