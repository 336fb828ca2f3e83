package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
)

var _ Repository = (*Memory)(nil)

// Memory keeps the backend state in process memory
type Memory struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[int64]*Account
	nextUser int64
	messages []domain.ChatMessage
	nextMsg  int64
	settings map[string]domain.Setting
	nextSet  int64
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		users:    make(map[int64]*Account),
		nextUser: 1,
		nextMsg:  1,
		settings: make(map[string]domain.Setting),
		nextSet:  1,
	}
}

func (m *Memory) CreateUser(_ context.Context, account Account) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findByEmailLocked(account.User.Email) != nil {
		return domain.User{}, ErrEmailTaken
	}

	account.User.ID = m.nextUser
	if account.User.CreatedAt.IsZero() {
		account.User.CreatedAt = m.now().UTC()
	}
	m.nextUser++
	m.users[account.User.ID] = &account
	return account.User, nil
}

func (m *Memory) UserByID(_ context.Context, id int64) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.users[id]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return *acc, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc := m.findByEmailLocked(email)
	if acc == nil {
		return Account{}, ErrUserNotFound
	}
	return *acc, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]domain.User, 0, len(m.users))
	for _, acc := range m.users {
		users = append(users, acc.User)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *Memory) UpdateUser(_ context.Context, id int64, patch UserPatch) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.users[id]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if patch.Email != nil {
		if other := m.findByEmailLocked(*patch.Email); other != nil && other != acc {
			return domain.User{}, ErrEmailTaken
		}
		acc.User.Email = *patch.Email
	}
	if patch.Username != nil {
		acc.User.Username = *patch.Username
	}
	if patch.Theme != nil {
		acc.User.Theme = *patch.Theme
	}
	if patch.PasswordHash != nil {
		acc.PasswordHash = *patch.PasswordHash
	}
	if patch.LicenseExpiresAt != nil {
		t := *patch.LicenseExpiresAt
		acc.User.LicenseExpiresAt = &t
	}
	if patch.IsAdmin != nil {
		acc.User.IsAdmin = *patch.IsAdmin
	}
	if patch.IsActive != nil {
		acc.User.IsActive = *patch.IsActive
	}
	return acc.User, nil
}

func (m *Memory) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)

	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.UserID == nil || *msg.UserID != id {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	return nil
}

func (m *Memory) AddMessage(_ context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextMsg
	m.nextMsg++
	msg.ID = &id
	if msg.UserID != nil {
		uid := *msg.UserID
		msg.UserID = &uid
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now().UTC()
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *Memory) Messages(_ context.Context, userID int64) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []domain.ChatMessage{}
	for _, msg := range m.messages {
		if msg.UserID != nil && *msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *Memory) AllMessages(_ context.Context) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out, nil
}

func (m *Memory) Settings(_ context.Context) ([]domain.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Setting, 0, len(m.settings))
	for _, s := range m.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) Setting(_ context.Context, key string) (domain.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.settings[key]
	if !ok {
		return domain.Setting{}, ErrSettingNotFound
	}
	return s, nil
}

func (m *Memory) PutSetting(_ context.Context, key, value string, description *string) (domain.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	s, ok := m.settings[key]
	if !ok {
		s = domain.Setting{ID: m.nextSet, Key: key, CreatedAt: now}
		m.nextSet++
	}
	s.Value = value
	if description != nil {
		desc := *description
		s.Description = &desc
	}
	s.UpdatedAt = now
	m.settings[key] = s
	return s, nil
}

func (m *Memory) DeleteSetting(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.settings[key]; !ok {
		return ErrSettingNotFound
	}
	delete(m.settings, key)
	return nil
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

// findByEmailLocked must be called with mu held
func (m *Memory) findByEmailLocked(email string) *Account {
	for _, acc := range m.users {
		if strings.EqualFold(acc.User.Email, email) {
			return acc
		}
	}
	return nil
}
