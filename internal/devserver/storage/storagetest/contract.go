// Package storagetest holds the behaviour every storage.Repository must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/devserver/storage"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run checks a repository implementation. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) storage.Repository) {
	t.Run("users", func(t *testing.T) { testUsers(t, newRepo(t)) })
	t.Run("update user", func(t *testing.T) { testUpdateUser(t, newRepo(t)) })
	t.Run("messages", func(t *testing.T) { testMessages(t, newRepo(t)) })
	t.Run("settings", func(t *testing.T) { testSettings(t, newRepo(t)) })
}

func account(username, email string) storage.Account {
	return storage.Account{
		User:         domain.User{Username: username, Email: email, IsActive: true},
		PasswordHash: "hash-" + username,
	}
}

func testUsers(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	alice, err := repo.CreateUser(ctx, account("alice", "Alice@b.com"))
	require.NoError(t, err)
	assert.NotZero(t, alice.ID)
	assert.False(t, alice.CreatedAt.IsZero())

	_, err = repo.CreateUser(ctx, account("other", "alice@B.com"))
	assert.ErrorIs(t, err, storage.ErrEmailTaken)

	bob, err := repo.CreateUser(ctx, account("bob", "bob@b.com"))
	require.NoError(t, err)
	assert.Greater(t, bob.ID, alice.ID)

	acc, err := repo.UserByEmail(ctx, "ALICE@b.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, acc.User.ID)
	assert.Equal(t, "hash-alice", acc.PasswordHash)

	acc, err = repo.UserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", acc.User.Username)

	_, err = repo.UserByID(ctx, bob.ID+100)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	_, err = repo.UserByEmail(ctx, "nobody@b.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, []int64{alice.ID, bob.ID}, []int64{users[0].ID, users[1].ID})

	require.NoError(t, repo.DeleteUser(ctx, alice.ID))
	assert.ErrorIs(t, repo.DeleteUser(ctx, alice.ID), storage.ErrUserNotFound)
	users, err = repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testUpdateUser(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	alice, err := repo.CreateUser(ctx, account("alice", "alice@b.com"))
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, account("bob", "bob@b.com"))
	require.NoError(t, err)

	name, theme, hash := "alicia", "light", "new-hash"
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	admin := true
	updated, err := repo.UpdateUser(ctx, alice.ID, storage.UserPatch{
		Username:         &name,
		Theme:            &theme,
		PasswordHash:     &hash,
		LicenseExpiresAt: &expires,
		IsAdmin:          &admin,
	})
	require.NoError(t, err)
	assert.Equal(t, "alicia", updated.Username)
	assert.Equal(t, "alice@b.com", updated.Email)
	assert.Equal(t, "light", updated.Theme)
	assert.True(t, updated.IsAdmin)
	assert.True(t, updated.IsActive)
	require.NotNil(t, updated.LicenseExpiresAt)
	assert.True(t, expires.Equal(*updated.LicenseExpiresAt))

	acc, err := repo.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", acc.PasswordHash)

	taken := "BOB@b.com"
	_, err = repo.UpdateUser(ctx, alice.ID, storage.UserPatch{Email: &taken})
	assert.ErrorIs(t, err, storage.ErrEmailTaken)

	recased := "ALICE@b.com"
	updated, err = repo.UpdateUser(ctx, alice.ID, storage.UserPatch{Email: &recased})
	require.NoError(t, err)
	assert.Equal(t, "ALICE@b.com", updated.Email)

	_, err = repo.UpdateUser(ctx, alice.ID+100, storage.UserPatch{Username: &name})
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func testMessages(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	alice, err := repo.CreateUser(ctx, account("alice", "alice@b.com"))
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, account("bob", "bob@b.com"))
	require.NoError(t, err)

	add := func(userID int64, sender domain.Sender, content string) domain.ChatMessage {
		msg, err := repo.AddMessage(ctx, domain.ChatMessage{UserID: &userID, Sender: sender, Content: content})
		require.NoError(t, err)
		require.NotNil(t, msg.ID)
		require.NotNil(t, msg.UserID)
		assert.Equal(t, userID, *msg.UserID)
		assert.False(t, msg.Timestamp.IsZero())
		return msg
	}
	first := add(alice.ID, domain.SenderUser, "hello")
	add(bob.ID, domain.SenderUser, "hi")
	last := add(alice.ID, domain.SenderBot, "how can I help")
	assert.Greater(t, *last.ID, *first.ID)

	history, err := repo.Messages(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, domain.SenderBot, history[1].Sender)

	all, err := repo.AllMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, repo.DeleteUser(ctx, alice.ID))
	history, err = repo.Messages(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	all, err = repo.AllMessages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "hi", all[0].Content)
}

func testSettings(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	_, err := repo.Setting(ctx, "bot_name")
	assert.ErrorIs(t, err, storage.ErrSettingNotFound)

	desc := "Default bot name"
	created, err := repo.PutSetting(ctx, "bot_name", "Helper", &desc)
	require.NoError(t, err)
	assert.Equal(t, "Helper", created.Value)
	require.NotNil(t, created.Description)

	updated, err := repo.PutSetting(ctx, "bot_name", "Robo", nil)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Robo", updated.Value)
	require.NotNil(t, updated.Description)
	assert.Equal(t, desc, *updated.Description)

	_, err = repo.PutSetting(ctx, "a_first", "1", nil)
	require.NoError(t, err)
	settings, err := repo.Settings(ctx)
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, "a_first", settings[0].Key)
	assert.Nil(t, settings[0].Description)

	got, err := repo.Setting(ctx, "bot_name")
	require.NoError(t, err)
	assert.Equal(t, "Robo", got.Value)

	require.NoError(t, repo.DeleteSetting(ctx, "bot_name"))
	assert.ErrorIs(t, repo.DeleteSetting(ctx, "bot_name"), storage.ErrSettingNotFound)
}
