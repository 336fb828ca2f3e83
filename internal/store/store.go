// Package store holds the client-side state stores. Each store owns its
// state, exposes explicit Subscribe methods and never holds its lock
// across a network call.
package store

import (
	"context"
	"errors"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/domain"
)

// ErrSuperseded is returned when a newer action replaced the result of a request
var ErrSuperseded = errors.New("superseded by a newer request")

// errNotAuthenticated is returned by operations that need an authenticated session
func errNotAuthenticated() error {
	return &api.Error{Kind: api.KindAuth, Message: "not authenticated"}
}

// AuthAPI is the subset of the REST client used by SessionStore
type AuthAPI interface {
	Login(ctx context.Context, input domain.LoginRequest) (*domain.AuthResponse, error)
	Register(ctx context.Context, input domain.RegisterRequest) (*domain.AuthResponse, error)
	CurrentUser(ctx context.Context) (*domain.UserResponse, error)
	UpdateProfile(ctx context.Context, input domain.UpdateProfileRequest) (*domain.UserResponse, error)
	ChangePassword(ctx context.Context, input domain.ChangePasswordRequest) error
}

// MessageAPI is the subset of the REST client used by TimelineStore
type MessageAPI interface {
	Messages(ctx context.Context) ([]domain.ChatMessage, error)
	SendMessage(ctx context.Context, input domain.SendMessageRequest) error
}

// DirectoryAPI is the subset of the REST client used by AdminStore
type DirectoryAPI interface {
	Users(ctx context.Context) ([]domain.ManagedUser, error)
	CreateUser(ctx context.Context, input domain.CreateUserRequest) error
	UpdateUser(ctx context.Context, id int64, input domain.UpdateUserRequest) error
	DeleteUser(ctx context.Context, id int64) error
	AllMessages(ctx context.Context) ([]domain.ChatMessage, error)
	UserMessages(ctx context.Context, userID int64) ([]domain.ChatMessage, error)
}

// ConfigAPI is the subset of the REST client used by ConfigStore
type ConfigAPI interface {
	Config(ctx context.Context) (*domain.AppConfig, error)
	Version(ctx context.Context) (*domain.VersionResponse, error)
}

// SettingsAPI is the subset of the REST client used by SettingsStore
type SettingsAPI interface {
	Settings(ctx context.Context) ([]domain.Setting, error)
	UpdateSetting(ctx context.Context, key string, input domain.UpdateSettingRequest) error
	DeleteSetting(ctx context.Context, key string) error
}

// SessionReader exposes the current session to other stores
type SessionReader interface {
	Snapshot() domain.Session
}

// Notifier receives user-facing outcome messages
type Notifier interface {
	Success(message string)
	Error(message string)
}
