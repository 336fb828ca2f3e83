package domain

import (
	"time"
)

// AppConfig is the public application configuration
type AppConfig struct {
	BotName string `json:"botName"`
}

// VersionResponse is returned by the version endpoint
type VersionResponse struct {
	Version string `json:"version"`
}

// Setting represents an admin-managed server setting
type Setting struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UpdateSettingRequest represents a setting update
type UpdateSettingRequest struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// Known setting keys
const (
	SettingLicenseDuration = "default_license_duration"
	SettingWebhookToken    = "webhook_secret_token"
	SettingBotName         = "default_bot_name"
)

// Theme is the UI color scheme preference
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Valid reports whether t is a known theme
func (t Theme) Valid() bool {
	return t == ThemeDark || t == ThemeLight
}

// Toggle returns the opposite theme
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// NotificationType classifies a user-facing notification
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
	NotifyInfo    NotificationType = "info"
	NotifyWarning NotificationType = "warning"
)

// Notification is a transient user-facing message
type Notification struct {
	ID      string           `json:"id"`
	Message string           `json:"message"`
	Type    NotificationType `json:"type"`
}
