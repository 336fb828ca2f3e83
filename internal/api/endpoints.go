package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Rrens/support-chat/internal/domain"
)

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, input domain.LoginRequest) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/login", input, &out, credentials); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns its token
func (c *Client) Register(ctx context.Context, input domain.RegisterRequest) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/register", input, &out, credentials); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUser returns the user owning the current token
func (c *Client) CurrentUser(ctx context.Context) (*domain.UserResponse, error) {
	var out domain.UserResponse
	if err := c.do(ctx, http.MethodGet, "/user/me", nil, &out, protected); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile changes the username and optionally the theme
func (c *Client) UpdateProfile(ctx context.Context, input domain.UpdateProfileRequest) (*domain.UserResponse, error) {
	var out domain.UserResponse
	if err := c.do(ctx, http.MethodPut, "/user/username", input, &out, protected); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword changes the current user's password
func (c *Client) ChangePassword(ctx context.Context, input domain.ChangePasswordRequest) error {
	return c.do(ctx, http.MethodPut, "/user/password", input, nil, protected)
}

// Messages returns the chat history in server order
func (c *Client) Messages(ctx context.Context) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/messages", nil, &out, protected); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts a user message; the bot reply arrives over the realtime channel
func (c *Client) SendMessage(ctx context.Context, input domain.SendMessageRequest) error {
	return c.do(ctx, http.MethodPost, "/messages", input, nil, protected)
}

// Config returns the public application configuration
func (c *Client) Config(ctx context.Context) (*domain.AppConfig, error) {
	var out domain.AppConfig
	if err := c.do(ctx, http.MethodGet, "/config", nil, &out, public); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version returns the backend version
func (c *Client) Version(ctx context.Context) (*domain.VersionResponse, error) {
	var out domain.VersionResponse
	if err := c.do(ctx, http.MethodGet, "/version", nil, &out, public); err != nil {
		return nil, err
	}
	return &out, nil
}

// Users lists all managed accounts
func (c *Client) Users(ctx context.Context) ([]domain.ManagedUser, error) {
	var out domain.UsersListResponse
	if err := c.do(ctx, http.MethodGet, "/admin/users", nil, &out, protected); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// CreateUser creates a managed account
func (c *Client) CreateUser(ctx context.Context, input domain.CreateUserRequest) error {
	return c.do(ctx, http.MethodPost, "/admin/users", input, nil, protected)
}

// UpdateUser updates a managed account
func (c *Client) UpdateUser(ctx context.Context, id int64, input domain.UpdateUserRequest) error {
	return c.do(ctx, http.MethodPut, "/admin/users/"+strconv.FormatInt(id, 10), input, nil, protected)
}

// DeleteUser deletes a managed account
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+strconv.FormatInt(id, 10), nil, nil, protected)
}

// AllMessages returns every user's messages
func (c *Client) AllMessages(ctx context.Context) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/admin/messages", nil, &out, protected); err != nil {
		return nil, err
	}
	return out, nil
}

// UserMessages returns one user's messages
func (c *Client) UserMessages(ctx context.Context, userID int64) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/admin/messages/"+strconv.FormatInt(userID, 10), nil, &out, protected); err != nil {
		return nil, err
	}
	return out, nil
}

// Settings lists all admin settings
func (c *Client) Settings(ctx context.Context) ([]domain.Setting, error) {
	var out []domain.Setting
	if err := c.do(ctx, http.MethodGet, "/admin/settings", nil, &out, protected); err != nil {
		return nil, err
	}
	return out, nil
}

// Setting returns a single admin setting
func (c *Client) Setting(ctx context.Context, key string) (*domain.Setting, error) {
	var out domain.Setting
	if err := c.do(ctx, http.MethodGet, "/admin/settings/"+escape(key), nil, &out, protected); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSetting writes an admin setting
func (c *Client) UpdateSetting(ctx context.Context, key string, input domain.UpdateSettingRequest) error {
	return c.do(ctx, http.MethodPut, "/admin/settings/"+escape(key), input, nil, protected)
}

// DeleteSetting removes an admin setting
func (c *Client) DeleteSetting(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/admin/settings/"+escape(key), nil, nil, protected)
}
