package store

import (
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/pubsub"
	"github.com/google/uuid"
)

// Default notification lifetimes
const (
	DefaultNotificationTTL = 4 * time.Second
	ErrorNotificationTTL   = 5 * time.Second
)

// NotificationStore keeps the transient notifications currently on screen
type NotificationStore struct {
	state *pubsub.Value[[]domain.Notification]

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewNotificationStore creates an empty notification store
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		state:  pubsub.NewValue([]domain.Notification{}),
		timers: make(map[string]*time.Timer),
	}
}

// Snapshot returns the visible notifications, oldest first
func (s *NotificationStore) Snapshot() []domain.Notification {
	return s.state.Get()
}

// Subscribe returns the visible notifications and a channel of later lists
func (s *NotificationStore) Subscribe() ([]domain.Notification, <-chan []domain.Notification, func()) {
	return s.state.Subscribe()
}

// Show adds a notification that is removed after ttl. A ttl of zero keeps it until removed.
func (s *NotificationStore) Show(message string, typ domain.NotificationType, ttl time.Duration) string {
	n := domain.Notification{
		ID:      uuid.NewString(),
		Message: message,
		Type:    typ,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Update(func(list []domain.Notification) []domain.Notification {
		out := make([]domain.Notification, len(list), len(list)+1)
		copy(out, list)
		return append(out, n)
	})
	if ttl > 0 {
		s.timers[n.ID] = time.AfterFunc(ttl, func() { s.Remove(n.ID) })
	}
	return n.ID
}

// Success shows a success notification
func (s *NotificationStore) Success(message string) {
	s.Show(message, domain.NotifySuccess, DefaultNotificationTTL)
}

// Info shows an informational notification
func (s *NotificationStore) Info(message string) {
	s.Show(message, domain.NotifyInfo, DefaultNotificationTTL)
}

// Warning shows a warning notification
func (s *NotificationStore) Warning(message string) {
	s.Show(message, domain.NotifyWarning, DefaultNotificationTTL)
}

// Error shows an error notification
func (s *NotificationStore) Error(message string) {
	s.Show(message, domain.NotifyError, ErrorNotificationTTL)
}

// Remove dismisses a notification
func (s *NotificationStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.state.Update(func(list []domain.Notification) []domain.Notification {
		out := make([]domain.Notification, 0, len(list))
		for _, n := range list {
			if n.ID != id {
				out = append(out, n)
			}
		}
		return out
	})
}

// Close stops all pending expiry timers
func (s *NotificationStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
