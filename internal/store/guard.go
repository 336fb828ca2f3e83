package store

import (
	"context"
	"errors"

	"github.com/Rrens/support-chat/internal/domain"
)

// Guard errors
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrNotAdmin        = errors.New("admin access required")
)

// SessionValidator is the part of SessionStore a Guard needs
type SessionValidator interface {
	SessionReader
	Validate(ctx context.Context) (domain.SessionState, error)
}

// Guard gates protected views on the session state
type Guard struct {
	session SessionValidator
}

// NewGuard creates a guard over session
func NewGuard(session SessionValidator) *Guard {
	return &Guard{session: session}
}

// RequireAuthenticated revalidates the held token before a protected view opens
func (g *Guard) RequireAuthenticated(ctx context.Context) error {
	if !g.session.Snapshot().HasToken() {
		return ErrUnauthenticated
	}
	state, err := g.session.Validate(ctx)
	if state != domain.Authenticated {
		if err != nil {
			return errors.Join(ErrUnauthenticated, err)
		}
		return ErrUnauthenticated
	}
	return nil
}

// RequireAdmin requires an authenticated admin session
func (g *Guard) RequireAdmin(ctx context.Context) error {
	if err := g.RequireAuthenticated(ctx); err != nil {
		return err
	}
	if !g.session.Snapshot().IsAdmin() {
		return ErrNotAdmin
	}
	return nil
}
