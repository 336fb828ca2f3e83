package devserver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Rrens/support-chat/internal/devserver/storage"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Backend errors
var (
	ErrEmailTaken         = storage.ErrEmailTaken
	ErrUserNotFound       = storage.ErrUserNotFound
	ErrSettingNotFound    = storage.ErrSettingNotFound
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrInactive           = errors.New("account is inactive")
)

// Backend holds the account, message and settings rules of the development
// server on top of a storage.Repository
type Backend struct {
	repo storage.Repository
	now  func() time.Time
}

// NewBackend creates a backend over repo
func NewBackend(repo storage.Repository) *Backend {
	return &Backend{repo: repo, now: time.Now}
}

// CreateUser adds an account
func (b *Backend) CreateUser(ctx context.Context, input domain.CreateUserRequest) (domain.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.MinCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	return b.repo.CreateUser(ctx, storage.Account{
		User: domain.User{
			Username:         input.Username,
			Email:            input.Email,
			IsAdmin:          input.IsAdmin,
			IsActive:         input.IsActive,
			LicenseExpiresAt: input.LicenseExpiresAt,
			CreatedAt:        b.now().UTC(),
		},
		PasswordHash: string(hashedPassword),
	})
}

// Register creates an active, non-admin account with the default license
func (b *Backend) Register(ctx context.Context, input domain.RegisterRequest) (domain.User, error) {
	var expires *time.Time
	if days := b.licenseDays(ctx); days > 0 {
		t := b.now().UTC().AddDate(0, 0, days)
		expires = &t
	}
	return b.CreateUser(ctx, domain.CreateUserRequest{
		Username:         input.Username,
		Email:            input.Email,
		Password:         input.Password,
		LicenseExpiresAt: expires,
		IsActive:         true,
	})
}

// Authenticate checks credentials
func (b *Backend) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	acc, err := b.repo.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !acc.User.IsActive {
		return domain.User{}, ErrInactive
	}
	return acc.User, nil
}

// User returns an account by id
func (b *Backend) User(ctx context.Context, id int64) (domain.User, error) {
	acc, err := b.repo.UserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return acc.User, nil
}

// Users returns all accounts ordered by id
func (b *Backend) Users(ctx context.Context) ([]domain.User, error) {
	return b.repo.ListUsers(ctx)
}

// UpdateProfile changes the username and optionally the theme
func (b *Backend) UpdateProfile(ctx context.Context, id int64, input domain.UpdateProfileRequest) (domain.User, error) {
	patch := storage.UserPatch{Username: &input.Username}
	if input.Theme != "" {
		patch.Theme = &input.Theme
	}
	return b.repo.UpdateUser(ctx, id, patch)
}

// ChangePassword replaces the password after checking the current one
func (b *Backend) ChangePassword(ctx context.Context, id int64, input domain.ChangePasswordRequest) error {
	acc, err := b.repo.UserByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	hash := string(hashedPassword)
	_, err = b.repo.UpdateUser(ctx, id, storage.UserPatch{PasswordHash: &hash})
	return err
}

// UpdateUser applies the non-nil fields of input
func (b *Backend) UpdateUser(ctx context.Context, id int64, input domain.UpdateUserRequest) (domain.User, error) {
	return b.repo.UpdateUser(ctx, id, storage.UserPatch{
		Username:         input.Username,
		Email:            input.Email,
		LicenseExpiresAt: input.LicenseExpiresAt,
		IsAdmin:          input.IsAdmin,
		IsActive:         input.IsActive,
	})
}

// DeleteUser removes an account and its messages
func (b *Backend) DeleteUser(ctx context.Context, id int64) error {
	return b.repo.DeleteUser(ctx, id)
}

// AddMessage stores a message for userID and returns it with its id
func (b *Backend) AddMessage(ctx context.Context, userID int64, sender domain.Sender, content string) (domain.ChatMessage, error) {
	return b.repo.AddMessage(ctx, domain.ChatMessage{
		UserID:    &userID,
		Sender:    sender,
		Content:   content,
		Timestamp: b.now().UTC(),
	})
}

// Messages returns the history of userID oldest first
func (b *Backend) Messages(ctx context.Context, userID int64) ([]domain.ChatMessage, error) {
	return b.repo.Messages(ctx, userID)
}

// AllMessages returns every stored message oldest first
func (b *Backend) AllMessages(ctx context.Context) ([]domain.ChatMessage, error) {
	return b.repo.AllMessages(ctx)
}

// Settings returns all settings ordered by key
func (b *Backend) Settings(ctx context.Context) ([]domain.Setting, error) {
	return b.repo.Settings(ctx)
}

// Setting returns one setting
func (b *Backend) Setting(ctx context.Context, key string) (domain.Setting, error) {
	return b.repo.Setting(ctx, key)
}

// PutSetting creates or replaces a setting. An empty description keeps the current one.
func (b *Backend) PutSetting(ctx context.Context, key string, input domain.UpdateSettingRequest) (domain.Setting, error) {
	var desc *string
	if input.Description != "" {
		desc = &input.Description
	}
	return b.repo.PutSetting(ctx, key, input.Value, desc)
}

// DeleteSetting removes a setting
func (b *Backend) DeleteSetting(ctx context.Context, key string) error {
	return b.repo.DeleteSetting(ctx, key)
}

// SettingValue returns the value of key or fallback when unset or unreadable
func (b *Backend) SettingValue(ctx context.Context, key, fallback string) string {
	s, err := b.repo.Setting(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrSettingNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("failed to read setting")
		}
		return fallback
	}
	if s.Value == "" {
		return fallback
	}
	return s.Value
}

// seedSetting stores value under key unless the key already exists
func (b *Backend) seedSetting(ctx context.Context, key, value, description string) error {
	_, err := b.repo.Setting(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrSettingNotFound) {
		return err
	}
	_, err = b.repo.PutSetting(ctx, key, value, &description)
	return err
}

func (b *Backend) licenseDays(ctx context.Context) int {
	days, err := strconv.Atoi(b.SettingValue(ctx, domain.SettingLicenseDuration, "365"))
	if err != nil {
		return 365
	}
	return days
}
