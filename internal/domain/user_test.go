package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_LicenseExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, User{}.LicenseExpired(now))
	assert.True(t, User{LicenseExpiresAt: &past}.LicenseExpired(now))
	assert.False(t, User{LicenseExpiresAt: &future}.LicenseExpired(now))
}

func TestUser_Merge(t *testing.T) {
	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	u := User{
		ID:               3,
		Username:         "old",
		Email:            "a@b.com",
		IsActive:         true,
		LicenseExpiresAt: &expires,
		Theme:            "dark",
	}

	merged, err := u.Merge(json.RawMessage(`{"id":3,"username":"new"}`))
	require.NoError(t, err)
	assert.Equal(t, "new", merged.Username)
	assert.Equal(t, "a@b.com", merged.Email)
	assert.True(t, merged.IsActive)
	assert.Equal(t, "dark", merged.Theme)
	require.NotNil(t, merged.LicenseExpiresAt)
	assert.True(t, expires.Equal(*merged.LicenseExpiresAt))
	assert.Equal(t, "old", u.Username)

	cleared, err := u.Merge(json.RawMessage(`{"licenseExpiresAt":null,"theme":"light"}`))
	require.NoError(t, err)
	assert.Nil(t, cleared.LicenseExpiresAt)
	assert.Equal(t, "light", cleared.Theme)
}

func TestUser_MergeRejectsInvalidJSON(t *testing.T) {
	u := User{Username: "old"}
	merged, err := u.Merge(json.RawMessage(`not json`))
	assert.Error(t, err)
	assert.Equal(t, u, merged)
}

func TestTheme(t *testing.T) {
	assert.True(t, ThemeDark.Valid())
	assert.False(t, Theme("blue").Valid())
	assert.Equal(t, ThemeLight, ThemeDark.Toggle())
	assert.Equal(t, ThemeDark, ThemeLight.Toggle())
}
