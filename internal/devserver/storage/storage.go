// Package storage defines where the development backend keeps its users,
// messages and settings.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
)

// Repository errors
var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrUserNotFound    = errors.New("user not found")
	ErrSettingNotFound = errors.New("setting not found")
)

// Account is a user together with its password hash
type Account struct {
	User         domain.User
	PasswordHash string
}

// UserPatch lists the account fields to change. Nil fields are left alone.
type UserPatch struct {
	Username         *string
	Email            *string
	Theme            *string
	PasswordHash     *string
	LicenseExpiresAt *time.Time
	IsAdmin          *bool
	IsActive         *bool
}

// Repository persists the development backend state.
// Emails are unique without regard to case.
type Repository interface {
	// CreateUser stores a new account and returns the user with its assigned id
	CreateUser(ctx context.Context, account Account) (domain.User, error)
	UserByID(ctx context.Context, id int64) (Account, error)
	UserByEmail(ctx context.Context, email string) (Account, error)
	// ListUsers returns all users ordered by id
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, id int64, patch UserPatch) (domain.User, error)
	// DeleteUser removes the account and its messages
	DeleteUser(ctx context.Context, id int64) error

	// AddMessage stores msg and returns it with its assigned id
	AddMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error)
	// Messages returns the history of userID oldest first
	Messages(ctx context.Context, userID int64) ([]domain.ChatMessage, error)
	AllMessages(ctx context.Context) ([]domain.ChatMessage, error)

	// Settings returns all settings ordered by key
	Settings(ctx context.Context) ([]domain.Setting, error)
	Setting(ctx context.Context, key string) (domain.Setting, error)
	// PutSetting creates or replaces a setting. A nil description keeps the current one.
	PutSetting(ctx context.Context, key, value string, description *string) (domain.Setting, error)
	DeleteSetting(ctx context.Context, key string) error

	Close() error
}
