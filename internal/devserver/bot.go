package devserver

import (
	"context"
	"time"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/llm"
	"github.com/Rrens/support-chat/internal/llm/anthropic"
	"github.com/Rrens/support-chat/internal/llm/gemini"
	"github.com/Rrens/support-chat/internal/llm/ollama"
	"github.com/Rrens/support-chat/internal/llm/openai"
	"github.com/rs/zerolog/log"
)

const defaultReplyTimeout = 60 * time.Second

// newBotRouter registers every reply provider and selects cfg.Provider
func newBotRouter(cfg config.BotConfig) *llm.Router {
	router := llm.NewRouter(cfg.Provider)
	router.RegisterProvider(ollama.NewProvider(cfg.OllamaHost, cfg.Model))
	router.RegisterProvider(openai.NewProvider(cfg.OpenAIKey, cfg.Model, cfg.OpenAIURL))
	router.RegisterProvider(anthropic.NewProvider(cfg.AnthropicKey, cfg.Model, cfg.AnthropicURL))
	router.RegisterProvider(gemini.NewProvider(cfg.GeminiKey, cfg.Model))

	if _, err := router.GetProvider(""); err != nil {
		log.Warn().Err(err).Str("provider", cfg.Provider).Msg("bot provider unavailable, replies fall back to echo")
	}
	return router
}

// botRequest builds the reply request for msg from the stored history
func (s *Server) botRequest(ctx context.Context, userID int64, msg domain.ChatMessage, botName string) llm.Request {
	req := llm.Request{BotName: botName, Message: msg.Content}
	if user, err := s.backend.User(ctx, userID); err == nil {
		req.Username = user.Username
	}

	stored, err := s.backend.Messages(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to load history for bot reply")
	}

	var history []llm.Turn
	for _, m := range stored {
		if m.ID != nil && msg.ID != nil && *m.ID == *msg.ID {
			break
		}
		role := llm.RoleUser
		if m.Sender == domain.SenderBot {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Turn{Role: role, Content: m.Content})
	}
	if n := s.cfg.Bot.HistoryTurns; n >= 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	req.History = history
	return req
}

// generateReply asks the bot router for an answer. Failures are logged
// and answered by the echo provider.
func (s *Server) generateReply(ctx context.Context, userID int64, msg domain.ChatMessage, botName string) string {
	timeout := s.cfg.Bot.Timeout
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.bot.Reply(ctx, s.botRequest(ctx, userID, msg, botName), s.cfg.Bot.Model)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("bot reply failed, using echo")
	} else {
		log.Debug().
			Str("model", resp.Model).
			Int("tokens", resp.TokensUsed).
			Int64("latency_ms", resp.LatencyMs).
			Msg("bot reply generated")
	}
	return resp.Text
}
