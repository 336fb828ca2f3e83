package domain

import (
	"time"
)

// Sender identifies who authored a chat message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// SendFailedText is shown in place of a bot reply when a send fails
const SendFailedText = "could not process your message"

// ChatMessage represents one entry of the chat timeline.
// ID is nil for local entries the server has not acknowledged.
type ChatMessage struct {
	ID        *int64    `json:"id,omitempty"`
	UserID    *int64    `json:"user_id,omitempty"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Local reports whether the message originated on this client
func (m ChatMessage) Local() bool {
	return m.ID == nil
}

// NewUserMessage builds an optimistic user entry
func NewUserMessage(content string, now time.Time) ChatMessage {
	return ChatMessage{
		Sender:    SenderUser,
		Content:   content,
		Timestamp: now,
	}
}

// NewBotMessage builds a locally generated bot entry
func NewBotMessage(content string, now time.Time) ChatMessage {
	return ChatMessage{
		Sender:    SenderBot,
		Content:   content,
		Timestamp: now,
	}
}

// SendMessageRequest represents an outgoing chat message
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// Timeline is the chat history as shown to the user
type Timeline struct {
	Messages []ChatMessage
	Loading  bool
	Error    string
}
