package domain

import (
	"context"
)

// SessionState is the authentication state of the client
type SessionState int

const (
	Unauthenticated SessionState = iota
	Validating
	Authenticated
)

func (s SessionState) String() string {
	switch s {
	case Validating:
		return "validating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session is a snapshot of the authentication session.
// User is only set while Token is set.
type Session struct {
	State SessionState
	Token string
	User  *User
}

// HasToken reports whether a bearer token is held
func (s Session) HasToken() bool {
	return s.Token != ""
}

// IsAdmin reports whether the session belongs to an admin
func (s Session) IsAdmin() bool {
	return s.User != nil && s.User.IsAdmin
}

// Persisted client state keys
const (
	TokenKey = "token"
	ThemeKey = "theme"
)

// LocalStorage is the process-wide persisted key-value slot for client state
type LocalStorage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
