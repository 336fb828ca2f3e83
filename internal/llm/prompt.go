package llm

import (
	"fmt"
	"strings"
)

// SystemPrompt describes the support assistant persona
func SystemPrompt(botName string) string {
	return fmt.Sprintf(`You are %s, a customer support assistant.

Rules:
1. Answer in plain text, short paragraphs, no markdown headings
2. Be polite and concise
3. If you do not know the answer, say so and suggest contacting a human agent
4. Never ask for passwords or payment details`, botName)
}

// BuildPrompt flattens the conversation into a single completion prompt
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(SystemPrompt(req.BotName))
	b.WriteString("\n\nConversation:\n")
	for _, t := range req.History {
		b.WriteString(speaker(req, t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	b.WriteString(speaker(req, RoleUser))
	b.WriteString(": ")
	b.WriteString(req.Message)
	b.WriteString("\n")
	b.WriteString(req.BotName)
	b.WriteString(":")
	return b.String()
}

// Messages returns the conversation as chat turns ending with the new message
func Messages(req Request) []Turn {
	turns := make([]Turn, 0, len(req.History)+1)
	turns = append(turns, req.History...)
	return append(turns, Turn{Role: RoleUser, Content: req.Message})
}

// CleanReply trims model output and drops a leading "<bot>:" label
func CleanReply(botName, content string) string {
	content = strings.TrimSpace(content)
	if botName != "" {
		if rest, ok := strings.CutPrefix(content, botName+":"); ok {
			content = strings.TrimSpace(rest)
		}
	}
	return content
}

func speaker(req Request, role string) string {
	if role == RoleAssistant {
		return req.BotName
	}
	if req.Username != "" {
		return req.Username
	}
	return "User"
}
