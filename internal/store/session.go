package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/pubsub"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/rs/zerolog/log"
)

// SessionStore owns the authentication session and the persisted token slot
type SessionStore struct {
	api     AuthAPI
	storage domain.LocalStorage
	state   *pubsub.Value[domain.Session]

	// gen orders validations against everything that replaces the session.
	// epoch orders sign-ins against each other and against logout.
	mu    sync.Mutex
	gen   uint64
	epoch uint64

	// persistMu is taken before mu is released so storage writes land in
	// the same order as the state changes that caused them.
	persistMu sync.Mutex

	hooksMu         sync.RWMutex
	onAuthenticated []func(domain.Session)
	onSignedOut     []func()
}

// NewSessionStore creates a new session store in the Unauthenticated state
func NewSessionStore(api AuthAPI, storage domain.LocalStorage) *SessionStore {
	return &SessionStore{
		api:     api,
		storage: storage,
		state:   pubsub.NewValue(domain.Session{State: domain.Unauthenticated}),
	}
}

// Snapshot returns the current session
func (s *SessionStore) Snapshot() domain.Session {
	return s.state.Get()
}

// Subscribe returns the current session and a channel of later sessions
func (s *SessionStore) Subscribe() (domain.Session, <-chan domain.Session, func()) {
	return s.state.Subscribe()
}

// Token returns the bearer token, or "" when none is held
func (s *SessionStore) Token() string {
	return s.state.Get().Token
}

// TokenExpiry reports when the held token expires according to its own claims
func (s *SessionStore) TokenExpiry() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}
	return security.TokenExpiry(token)
}

// OnAuthenticated registers fn to run after login, register or a successful validation
func (s *SessionStore) OnAuthenticated(fn func(domain.Session)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onAuthenticated = append(s.onAuthenticated, fn)
}

// OnSignedOut registers fn to run whenever the session is torn down
func (s *SessionStore) OnSignedOut(fn func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onSignedOut = append(s.onSignedOut, fn)
}

// Restore reads the persisted token and validates it
func (s *SessionStore) Restore(ctx context.Context) (domain.SessionState, error) {
	token, ok, err := s.storage.Get(ctx, domain.TokenKey)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read persisted token")
	}
	if err != nil || !ok || token == "" {
		s.mu.Lock()
		s.gen++
		s.epoch++
		s.state.Set(domain.Session{State: domain.Unauthenticated})
		s.mu.Unlock()
		return domain.Unauthenticated, nil
	}

	s.mu.Lock()
	s.state.Set(domain.Session{State: domain.Validating, Token: token})
	s.mu.Unlock()

	return s.Validate(ctx)
}

// Validate checks the held token against the server. Any failure clears the
// persisted token and the user.
func (s *SessionStore) Validate(ctx context.Context) (domain.SessionState, error) {
	s.mu.Lock()
	cur := s.state.Get()
	if !cur.HasToken() {
		s.mu.Unlock()
		return domain.Unauthenticated, nil
	}
	s.gen++
	gen := s.gen
	if cur.State != domain.Authenticated {
		s.state.Set(domain.Session{State: domain.Validating, Token: cur.Token})
	}
	s.mu.Unlock()

	resp, err := s.api.CurrentUser(ctx)
	var user domain.User
	if err == nil {
		err = json.Unmarshal(resp.User, &user)
		if err != nil {
			err = fmt.Errorf("failed to decode user: %w", err)
		}
	}

	s.mu.Lock()
	if s.gen != gen {
		state := s.state.Get().State
		s.mu.Unlock()
		if err != nil {
			return state, err
		}
		return state, ErrSuperseded
	}

	if err != nil {
		s.gen++
		s.clearLocked()
		s.mu.Unlock()
		s.removeToken(ctx)
		log.Info().Err(err).Msg("session validation failed")
		s.signedOut()
		return domain.Unauthenticated, err
	}

	session := domain.Session{State: domain.Authenticated, Token: cur.Token, User: &user}
	s.state.Set(session)
	s.mu.Unlock()

	s.authenticated(session)
	return domain.Authenticated, nil
}

// Login authenticates with email and password
func (s *SessionStore) Login(ctx context.Context, email, password string) (*domain.User, error) {
	epoch := s.begin()
	resp, err := s.api.Login(ctx, domain.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, epoch, resp)
}

// Register creates an account and signs in with it
func (s *SessionStore) Register(ctx context.Context, input domain.RegisterRequest) (*domain.User, error) {
	epoch := s.begin()
	resp, err := s.api.Register(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, epoch, resp)
}

// Logout clears the session locally. It never fails.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	s.gen++
	s.epoch++
	s.clearLocked()
	s.mu.Unlock()
	s.removeToken(context.Background())

	log.Info().Msg("signed out")
	s.signedOut()
}

// UpdateProfile changes the username and optionally the theme, merging only
// the fields the server returns.
func (s *SessionStore) UpdateProfile(ctx context.Context, input domain.UpdateProfileRequest) (*domain.User, error) {
	if s.state.Get().State != domain.Authenticated {
		return nil, errNotAuthenticated()
	}

	resp, err := s.api.UpdateProfile(ctx, input)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Get()
	if cur.State != domain.Authenticated || cur.User == nil {
		return nil, ErrSuperseded
	}
	merged, err := cur.User.Merge(resp.User)
	if err != nil {
		return nil, err
	}
	cur.User = &merged
	s.state.Set(cur)

	out := merged
	return &out, nil
}

// ChangePassword changes the current user's password
func (s *SessionStore) ChangePassword(ctx context.Context, current, next string) error {
	if s.state.Get().State != domain.Authenticated {
		return errNotAuthenticated()
	}
	return s.api.ChangePassword(ctx, domain.ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
	})
}

// begin supersedes older sign-ins. A failed sign-in leaves the session and
// any pending validation alone.
func (s *SessionStore) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}

// establish stores a fresh token and user if no newer sign-in or logout
// intervened. A session held under another token is signed out first.
func (s *SessionStore) establish(ctx context.Context, epoch uint64, resp *domain.AuthResponse) (*domain.User, error) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}

	prev := s.state.Get()
	s.gen++
	user := resp.User
	session := domain.Session{State: domain.Authenticated, Token: resp.Token, User: &user}
	s.state.Set(session)
	s.persistMu.Lock()
	s.mu.Unlock()

	err := s.storage.Set(ctx, domain.TokenKey, resp.Token)
	s.persistMu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("failed to persist token")
	}

	if prev.HasToken() && prev.Token != resp.Token {
		log.Info().Msg("replacing previous session")
		s.signedOut()
	}
	log.Info().Int64("user_id", user.ID).Bool("admin", user.IsAdmin).Msg("signed in")
	s.authenticated(session)

	out := user
	return &out, nil
}

// clearLocked must be called with mu held. It leaves persistMu locked for
// the removeToken call that has to follow once mu is released.
func (s *SessionStore) clearLocked() {
	s.state.Set(domain.Session{State: domain.Unauthenticated})
	s.persistMu.Lock()
}

func (s *SessionStore) removeToken(ctx context.Context) {
	defer s.persistMu.Unlock()
	if err := s.storage.Remove(ctx, domain.TokenKey); err != nil {
		log.Warn().Err(err).Msg("failed to remove persisted token")
	}
}

func (s *SessionStore) authenticated(session domain.Session) {
	s.hooksMu.RLock()
	hooks := append([]func(domain.Session){}, s.onAuthenticated...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(session)
	}
}

func (s *SessionStore) signedOut() {
	s.hooksMu.RLock()
	hooks := append([]func(){}, s.onSignedOut...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}
