package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/pubsub"
	"github.com/rs/zerolog/log"
)

// TimelineStore owns the chat timeline of the current session
type TimelineStore struct {
	api     MessageAPI
	session SessionReader
	now     func() time.Time
	state   *pubsub.Value[domain.Timeline]

	mu sync.Mutex
	// loadGen discards stale history responses; epoch changes on Clear
	loadGen uint64
	epoch   uint64
}

// NewTimelineStore creates an empty timeline store
func NewTimelineStore(api MessageAPI, session SessionReader) *TimelineStore {
	return &TimelineStore{
		api:     api,
		session: session,
		now:     time.Now,
		state:   pubsub.NewValue(domain.Timeline{}),
	}
}

// Snapshot returns the current timeline
func (s *TimelineStore) Snapshot() domain.Timeline {
	return s.state.Get()
}

// Subscribe returns the current timeline and a channel of later timelines
func (s *TimelineStore) Subscribe() (domain.Timeline, <-chan domain.Timeline, func()) {
	return s.state.Subscribe()
}

// LoadHistory replaces the timeline with the server history.
// Only the most recent load may apply its result.
func (s *TimelineStore) LoadHistory(ctx context.Context) error {
	if s.session.Snapshot().State != domain.Authenticated {
		return errNotAuthenticated()
	}

	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.state.Update(func(t domain.Timeline) domain.Timeline {
		t.Loading = true
		t.Error = ""
		return t
	})
	s.mu.Unlock()

	messages, err := s.api.Messages(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.loadGen {
		log.Debug().Uint64("gen", gen).Msg("discarding stale history response")
		return ErrSuperseded
	}

	if err != nil {
		s.state.Update(func(t domain.Timeline) domain.Timeline {
			t.Loading = false
			t.Error = api.UserMessage(err)
			return t
		})
		return err
	}

	history := make([]domain.ChatMessage, len(messages))
	copy(history, messages)
	s.state.Set(domain.Timeline{Messages: history})
	return nil
}

// SendUserMessage appends the user's message immediately and posts it.
// The local entry stays in the timeline whatever the outcome; a failure
// appends a bot notice instead.
func (s *TimelineStore) SendUserMessage(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return &api.Error{Kind: api.KindValidation, Message: "message is empty", Fields: map[string]string{"Content": "field is required"}}
	}

	s.mu.Lock()
	epoch := s.epoch
	s.appendLocked(domain.NewUserMessage(content, s.now()))
	s.mu.Unlock()

	err := s.api.SendMessage(ctx, domain.SendMessageRequest{Content: content})
	if err == nil {
		return nil
	}

	log.Warn().Err(err).Msg("failed to send message")

	s.mu.Lock()
	if s.epoch == epoch {
		s.appendLocked(domain.NewBotMessage(domain.SendFailedText, s.now()))
	}
	s.mu.Unlock()
	return err
}

// ReceivePushedMessage appends a message delivered by the realtime channel
func (s *TimelineStore) ReceivePushedMessage(msg domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(msg)
}

// Clear empties the timeline and abandons in-flight loads
func (s *TimelineStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadGen++
	s.epoch++
	s.state.Set(domain.Timeline{})
}

// appendLocked must be called with mu held
func (s *TimelineStore) appendLocked(msg domain.ChatMessage) {
	s.state.Update(func(t domain.Timeline) domain.Timeline {
		messages := make([]domain.ChatMessage, len(t.Messages), len(t.Messages)+1)
		copy(messages, t.Messages)
		t.Messages = append(messages, msg)
		return t
	})
}
