package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/repository/memory"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSessionStore(t *testing.T) (*SessionStore, *MockAuthAPI, *memory.Storage) {
	t.Helper()
	authAPI := new(MockAuthAPI)
	storage := memory.NewStorage()
	return NewSessionStore(authAPI, storage), authAPI, storage
}

func storedToken(t *testing.T, storage domain.LocalStorage) (string, bool) {
	t.Helper()
	token, ok, err := storage.Get(context.Background(), domain.TokenKey)
	require.NoError(t, err)
	return token, ok
}

func TestSessionStore_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success connects realtime", func(t *testing.T) {
		store, authAPI, storage := newSessionStore(t)

		var connects []domain.Session
		store.OnAuthenticated(func(s domain.Session) { connects = append(connects, s) })

		authAPI.On("Login", mock.Anything, domain.LoginRequest{Email: "a@b.com", Password: "secret"}).
			Return(&domain.AuthResponse{
				Token: "t1",
				User:  domain.User{ID: 1, Username: "A", IsAdmin: false},
			}, nil)

		user, err := store.Login(ctx, "a@b.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "A", user.Username)

		session := store.Snapshot()
		assert.Equal(t, domain.Authenticated, session.State)
		require.NotNil(t, session.User)
		assert.False(t, session.User.IsAdmin)
		assert.Equal(t, "t1", store.Token())

		token, ok := storedToken(t, storage)
		assert.True(t, ok)
		assert.Equal(t, "t1", token)

		require.Len(t, connects, 1)
		assert.Equal(t, "t1", connects[0].Token)
		authAPI.AssertExpectations(t)
	})

	t.Run("invalid credentials leave session untouched", func(t *testing.T) {
		store, authAPI, storage := newSessionStore(t)

		authAPI.On("Login", mock.Anything, mock.Anything).
			Return(nil, &api.Error{Kind: api.KindInvalidCredentials, Status: 401, Message: "invalid credentials"})

		_, err := store.Login(ctx, "a@b.com", "wrong")
		assert.ErrorIs(t, err, api.ErrInvalidCredentials)
		assert.Equal(t, domain.Session{State: domain.Unauthenticated}, store.Snapshot())

		_, ok := storedToken(t, storage)
		assert.False(t, ok)
	})

	t.Run("logout during login wins", func(t *testing.T) {
		store, authAPI, storage := newSessionStore(t)

		authAPI.On("Login", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { store.Logout() }).
			Return(&domain.AuthResponse{Token: "late", User: domain.User{ID: 1}}, nil)

		_, err := store.Login(ctx, "a@b.com", "secret")
		assert.ErrorIs(t, err, ErrSuperseded)
		assert.Equal(t, domain.Unauthenticated, store.Snapshot().State)

		_, ok := storedToken(t, storage)
		assert.False(t, ok)
	})
}

func TestSessionStore_Register(t *testing.T) {
	store, authAPI, storage := newSessionStore(t)

	input := domain.RegisterRequest{Username: "A", Email: "a@b.com", Password: "secret"}
	authAPI.On("Register", mock.Anything, input).
		Return(&domain.AuthResponse{Token: "t2", User: domain.User{ID: 2, Username: "A"}}, nil)

	user, err := store.Register(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(2), user.ID)
	assert.Equal(t, domain.Authenticated, store.Snapshot().State)

	token, _ := storedToken(t, storage)
	assert.Equal(t, "t2", token)
}

func TestSessionStore_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		store, authAPI, _ := newSessionStore(t)

		state, err := store.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Unauthenticated, state)
		assert.Nil(t, store.Snapshot().User)
		authAPI.AssertNotCalled(t, "CurrentUser", mock.Anything)
	})

	t.Run("valid token", func(t *testing.T) {
		store, authAPI, storage := newSessionStore(t)
		require.NoError(t, storage.Set(ctx, domain.TokenKey, "t1"))

		var connected bool
		store.OnAuthenticated(func(domain.Session) { connected = true })

		authAPI.On("CurrentUser", mock.Anything).Run(func(mock.Arguments) {
			// The token is available to the API client while validating
			assert.Equal(t, "t1", store.Token())
			assert.Equal(t, domain.Validating, store.Snapshot().State)
		}).Return(&domain.UserResponse{User: json.RawMessage(`{"id":1,"username":"A","isAdmin":true}`)}, nil)

		state, err := store.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Authenticated, state)
		assert.True(t, store.Snapshot().IsAdmin())
		assert.True(t, connected)
	})

	t.Run("logout then restore leaves nothing behind", func(t *testing.T) {
		store, authAPI, _ := newSessionStore(t)
		authAPI.On("Login", mock.Anything, mock.Anything).
			Return(&domain.AuthResponse{Token: "t1", User: domain.User{ID: 1, Username: "A"}}, nil)

		var signedOut int
		store.OnSignedOut(func() { signedOut++ })

		_, err := store.Login(ctx, "a@b.com", "secret")
		require.NoError(t, err)

		store.Logout()
		assert.Equal(t, 1, signedOut)

		state, err := store.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Unauthenticated, state)
		assert.Equal(t, domain.Session{State: domain.Unauthenticated}, store.Snapshot())
	})
}

func TestSessionStore_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("failure clears token idempotently", func(t *testing.T) {
		store, authAPI, storage := newSessionStore(t)
		require.NoError(t, storage.Set(ctx, domain.TokenKey, "bad"))

		authAPI.On("CurrentUser", mock.Anything).
			Return(nil, &api.Error{Kind: api.KindAuth, Status: 401, Message: "invalid token"}).Once()

		state, err := store.Restore(ctx)
		assert.ErrorIs(t, err, api.ErrAuth)
		assert.Equal(t, domain.Unauthenticated, state)
		first := store.Snapshot()

		_, ok := storedToken(t, storage)
		assert.False(t, ok)

		state, err = store.Validate(ctx)
		assert.NoError(t, err)
		assert.Equal(t, domain.Unauthenticated, state)
		assert.Equal(t, first, store.Snapshot())

		_, ok = storedToken(t, storage)
		assert.False(t, ok)
		authAPI.AssertExpectations(t)
	})

	t.Run("revalidation keeps session authenticated until it fails", func(t *testing.T) {
		store, authAPI, _ := newSessionStore(t)
		authAPI.On("Login", mock.Anything, mock.Anything).
			Return(&domain.AuthResponse{Token: "t1", User: domain.User{ID: 1}}, nil)
		_, err := store.Login(ctx, "a@b.com", "secret")
		require.NoError(t, err)

		authAPI.On("CurrentUser", mock.Anything).Run(func(mock.Arguments) {
			assert.Equal(t, domain.Authenticated, store.Snapshot().State)
		}).Return(nil, &api.Error{Kind: api.KindNetwork, Message: "connection error"})

		var signedOut bool
		store.OnSignedOut(func() { signedOut = true })

		state, err := store.Validate(ctx)
		assert.ErrorIs(t, err, api.ErrNetwork)
		assert.Equal(t, domain.Unauthenticated, state)
		assert.True(t, signedOut)
	})
}

func TestSessionStore_ValidateRacingLogin(t *testing.T) {
	ctx := context.Background()

	type result struct {
		state domain.SessionState
		err   error
	}

	// restoreBlocked starts a restore of token and returns once CurrentUser is
	// in flight. Closing the returned channel lets CurrentUser answer.
	restoreBlocked := func(t *testing.T, store *SessionStore, authAPI *MockAuthAPI, storage *memory.Storage, token string, user *domain.UserResponse, userErr error) (chan struct{}, <-chan result) {
		t.Helper()
		require.NoError(t, storage.Set(ctx, domain.TokenKey, token))

		entered := make(chan struct{})
		release := make(chan struct{})
		authAPI.On("CurrentUser", mock.Anything).Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).Return(user, userErr).Once()

		done := make(chan result, 1)
		go func() {
			state, err := store.Restore(ctx)
			done <- result{state, err}
		}()

		select {
		case <-entered:
		case <-time.After(time.Second):
			t.Fatal("validation never started")
		}
		return release, done
	}

	t.Run("failed login keeps the pending validation", func(t *testing.T) {
		store, authAPI, storage := newSessionStore(t)
		release, done := restoreBlocked(t, store, authAPI, storage, "stale", nil,
			&api.Error{Kind: api.KindAuth, Status: 401, Message: "invalid token"})

		authAPI.On("Login", mock.Anything, mock.Anything).
			Return(nil, &api.Error{Kind: api.KindInvalidCredentials, Status: 401, Message: "invalid credentials"})
		_, err := store.Login(ctx, "a@b.com", "wrong")
		assert.ErrorIs(t, err, api.ErrInvalidCredentials)

		close(release)
		res := <-done
		assert.ErrorIs(t, res.err, api.ErrAuth)
		assert.Equal(t, domain.Unauthenticated, res.state)
		assert.Equal(t, domain.Session{State: domain.Unauthenticated}, store.Snapshot())

		_, ok := storedToken(t, storage)
		assert.False(t, ok)
	})

	t.Run("successful login outlives a failed validation", func(t *testing.T) {
		store, authAPI, storage := newSessionStore(t)
		release, done := restoreBlocked(t, store, authAPI, storage, "stale", nil,
			&api.Error{Kind: api.KindAuth, Status: 401, Message: "invalid token"})

		var signedOut int
		store.OnSignedOut(func() { signedOut++ })

		authAPI.On("Login", mock.Anything, mock.Anything).
			Return(&domain.AuthResponse{Token: "fresh", User: domain.User{ID: 2, Username: "B"}}, nil)
		_, err := store.Login(ctx, "b@b.com", "secret")
		require.NoError(t, err)

		close(release)
		res := <-done
		assert.ErrorIs(t, res.err, api.ErrAuth)
		assert.Equal(t, domain.Authenticated, res.state)
		assert.Equal(t, "fresh", store.Token())

		token, ok := storedToken(t, storage)
		assert.True(t, ok)
		assert.Equal(t, "fresh", token)
		assert.Equal(t, 1, signedOut)
	})

	t.Run("successful login discards a successful validation", func(t *testing.T) {
		store, authAPI, storage := newSessionStore(t)
		release, done := restoreBlocked(t, store, authAPI, storage, "old",
			&domain.UserResponse{User: json.RawMessage(`{"id":1,"username":"A"}`)}, nil)

		authAPI.On("Login", mock.Anything, mock.Anything).
			Return(&domain.AuthResponse{Token: "fresh", User: domain.User{ID: 2, Username: "B"}}, nil)
		_, err := store.Login(ctx, "b@b.com", "secret")
		require.NoError(t, err)

		close(release)
		res := <-done
		assert.ErrorIs(t, res.err, ErrSuperseded)
		assert.Equal(t, domain.Authenticated, res.state)
		assert.Equal(t, "B", store.Snapshot().User.Username)

		token, _ := storedToken(t, storage)
		assert.Equal(t, "fresh", token)
	})
}

func TestSessionStore_ReplaceSession(t *testing.T) {
	ctx := context.Background()
	store, authAPI, storage := newSessionStore(t)

	var events []string
	store.OnSignedOut(func() { events = append(events, "signed out") })
	store.OnAuthenticated(func(s domain.Session) { events = append(events, "authenticated "+s.Token) })

	authAPI.On("Login", mock.Anything, domain.LoginRequest{Email: "a@b.com", Password: "secret"}).
		Return(&domain.AuthResponse{Token: "ta", User: domain.User{ID: 1, Username: "A"}}, nil)
	authAPI.On("Login", mock.Anything, domain.LoginRequest{Email: "b@b.com", Password: "secret"}).
		Return(&domain.AuthResponse{Token: "tb", User: domain.User{ID: 2, Username: "B"}}, nil)

	_, err := store.Login(ctx, "a@b.com", "secret")
	require.NoError(t, err)
	_, err = store.Login(ctx, "b@b.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, []string{"authenticated ta", "signed out", "authenticated tb"}, events)
	assert.Equal(t, int64(2), store.Snapshot().User.ID)

	token, _ := storedToken(t, storage)
	assert.Equal(t, "tb", token)
}

// lockCheckingStorage records whether the session lock was free during each write
type lockCheckingStorage struct {
	*memory.Storage
	store  *SessionStore
	writes []bool
}

func (l *lockCheckingStorage) free() bool {
	if !l.store.mu.TryLock() {
		return false
	}
	l.store.mu.Unlock()
	return true
}

func (l *lockCheckingStorage) Set(ctx context.Context, key, value string) error {
	l.writes = append(l.writes, l.free())
	return l.Storage.Set(ctx, key, value)
}

func (l *lockCheckingStorage) Remove(ctx context.Context, key string) error {
	l.writes = append(l.writes, l.free())
	return l.Storage.Remove(ctx, key)
}

func TestSessionStore_StorageWritesOutsideLock(t *testing.T) {
	ctx := context.Background()
	authAPI := new(MockAuthAPI)
	storage := &lockCheckingStorage{Storage: memory.NewStorage()}
	store := NewSessionStore(authAPI, storage)
	storage.store = store

	authAPI.On("Login", mock.Anything, mock.Anything).
		Return(&domain.AuthResponse{Token: "t1", User: domain.User{ID: 1}}, nil)
	authAPI.On("CurrentUser", mock.Anything).
		Return(nil, &api.Error{Kind: api.KindAuth, Status: 401, Message: "invalid token"})

	_, err := store.Login(ctx, "a@b.com", "secret")
	require.NoError(t, err)
	_, err = store.Validate(ctx)
	assert.ErrorIs(t, err, api.ErrAuth)
	_, err = store.Login(ctx, "a@b.com", "secret")
	require.NoError(t, err)
	store.Logout()

	assert.Equal(t, []bool{true, true, true, true}, storage.writes)
	_, ok := storedToken(t, storage)
	assert.False(t, ok)
}

func TestSessionStore_UpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("merges returned fields only", func(t *testing.T) {
		store, authAPI, _ := newSessionStore(t)
		authAPI.On("Login", mock.Anything, mock.Anything).
			Return(&domain.AuthResponse{
				Token: "t1",
				User:  domain.User{ID: 1, Username: "A", Email: "a@b.com", IsAdmin: true},
			}, nil)
		_, err := store.Login(ctx, "a@b.com", "secret")
		require.NoError(t, err)

		input := domain.UpdateProfileRequest{Username: "B", Theme: "light"}
		authAPI.On("UpdateProfile", mock.Anything, input).
			Return(&domain.UserResponse{User: json.RawMessage(`{"username":"B","theme":"light"}`)}, nil)

		user, err := store.UpdateProfile(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, "B", user.Username)
		assert.Equal(t, "light", user.Theme)
		assert.Equal(t, "a@b.com", user.Email)
		assert.True(t, user.IsAdmin)
		assert.Equal(t, "B", store.Snapshot().User.Username)
	})

	t.Run("requires authentication", func(t *testing.T) {
		store, authAPI, _ := newSessionStore(t)

		_, err := store.UpdateProfile(ctx, domain.UpdateProfileRequest{Username: "B"})
		assert.ErrorIs(t, err, api.ErrAuth)
		authAPI.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
	})
}

func TestSessionStore_ChangePassword(t *testing.T) {
	ctx := context.Background()
	store, authAPI, _ := newSessionStore(t)

	err := store.ChangePassword(ctx, "old", "newpass")
	assert.ErrorIs(t, err, api.ErrAuth)

	authAPI.On("Login", mock.Anything, mock.Anything).
		Return(&domain.AuthResponse{Token: "t1", User: domain.User{ID: 1}}, nil)
	_, err = store.Login(ctx, "a@b.com", "secret")
	require.NoError(t, err)

	authAPI.On("ChangePassword", mock.Anything, domain.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "newpass"}).
		Return(nil)
	assert.NoError(t, store.ChangePassword(ctx, "old", "newpass"))
	authAPI.AssertExpectations(t)
}

func TestSessionStore_TokenExpiry(t *testing.T) {
	store, authAPI, _ := newSessionStore(t)

	_, ok := store.TokenExpiry()
	assert.False(t, ok)

	token, err := security.NewJWTManager("secret", time.Hour).Generate(1, "a@b.com", false)
	require.NoError(t, err)

	authAPI.On("Login", mock.Anything, mock.Anything).
		Return(&domain.AuthResponse{Token: token, User: domain.User{ID: 1}}, nil)
	_, err = store.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)

	expiry, ok := store.TokenExpiry()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)
}

func TestSessionStore_Subscribe(t *testing.T) {
	store, authAPI, _ := newSessionStore(t)

	initial, updates, cancel := store.Subscribe()
	defer cancel()
	assert.Equal(t, domain.Unauthenticated, initial.State)

	authAPI.On("Login", mock.Anything, mock.Anything).
		Return(&domain.AuthResponse{Token: "t1", User: domain.User{ID: 1}}, nil)
	_, err := store.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)

	select {
	case s := <-updates:
		assert.Equal(t, domain.Authenticated, s.State)
	case <-time.After(time.Second):
		t.Fatal("no session update")
	}
}
