package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// User represents the authenticated account as returned by the API
type User struct {
	ID               int64      `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	IsAdmin          bool       `json:"isAdmin"`
	IsActive         bool       `json:"isActive"`
	LicenseExpiresAt *time.Time `json:"licenseExpiresAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	Theme            string     `json:"theme,omitempty"`
}

// ManagedUser is a user account as seen from the admin directory
type ManagedUser = User

// LicenseExpired reports whether the user's license ended before now.
// Users without an expiry never expire.
func (u User) LicenseExpired(now time.Time) bool {
	if u.LicenseExpiresAt == nil {
		return false
	}
	return u.LicenseExpiresAt.Before(now)
}

// Merge overlays the fields present in raw onto a copy of u.
// Fields absent from raw keep their current value; explicit nulls clear them.
func (u User) Merge(raw json.RawMessage) (User, error) {
	base, err := json.Marshal(u)
	if err != nil {
		return u, fmt.Errorf("failed to marshal user: %w", err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return u, fmt.Errorf("failed to decode user: %w", err)
	}

	patch := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return u, fmt.Errorf("failed to decode user patch: %w", err)
	}
	for k, v := range patch {
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return u, fmt.Errorf("failed to marshal merged user: %w", err)
	}

	var out User
	if err := json.Unmarshal(merged, &out); err != nil {
		return u, fmt.Errorf("failed to decode merged user: %w", err)
	}
	return out, nil
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// AuthResponse is returned by login and register
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UserResponse wraps a single user. The raw form is kept so partial
// updates can be merged field by field.
type UserResponse struct {
	User json.RawMessage `json:"user"`
}

// UpdateProfileRequest represents a profile update
type UpdateProfileRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Theme    string `json:"theme,omitempty" validate:"omitempty,oneof=light dark"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

// CreateUserRequest represents an admin user creation
type CreateUserRequest struct {
	Username         string     `json:"username" validate:"required,max=100"`
	Email            string     `json:"email" validate:"required,email,max=255"`
	Password         string     `json:"password" validate:"required,min=6,max=72"`
	LicenseExpiresAt *time.Time `json:"licenseExpiresAt"`
	IsAdmin          bool       `json:"isAdmin"`
	IsActive         bool       `json:"isActive"`
}

// UpdateUserRequest represents an admin user update. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Username         *string    `json:"username,omitempty" validate:"omitempty,max=100"`
	Email            *string    `json:"email,omitempty" validate:"omitempty,email,max=255"`
	LicenseExpiresAt *time.Time `json:"licenseExpiresAt,omitempty"`
	IsAdmin          *bool      `json:"isAdmin,omitempty"`
	IsActive         *bool      `json:"isActive,omitempty"`
}

// UsersListResponse is returned by the admin user listing
type UsersListResponse struct {
	Users []User `json:"users"`
}
