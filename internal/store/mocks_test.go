package store

import (
	"context"
	"sync"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockAuthAPI mocks the AuthAPI interface
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Login(ctx context.Context, input domain.LoginRequest) (*domain.AuthResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthResponse), args.Error(1)
}

func (m *MockAuthAPI) Register(ctx context.Context, input domain.RegisterRequest) (*domain.AuthResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthResponse), args.Error(1)
}

func (m *MockAuthAPI) CurrentUser(ctx context.Context) (*domain.UserResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserResponse), args.Error(1)
}

func (m *MockAuthAPI) UpdateProfile(ctx context.Context, input domain.UpdateProfileRequest) (*domain.UserResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserResponse), args.Error(1)
}

func (m *MockAuthAPI) ChangePassword(ctx context.Context, input domain.ChangePasswordRequest) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

// MockMessageAPI mocks the MessageAPI interface
type MockMessageAPI struct {
	mock.Mock
}

func (m *MockMessageAPI) Messages(ctx context.Context) ([]domain.ChatMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatMessage), args.Error(1)
}

func (m *MockMessageAPI) SendMessage(ctx context.Context, input domain.SendMessageRequest) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

// MockDirectoryAPI mocks the DirectoryAPI interface
type MockDirectoryAPI struct {
	mock.Mock
}

func (m *MockDirectoryAPI) Users(ctx context.Context) ([]domain.ManagedUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ManagedUser), args.Error(1)
}

func (m *MockDirectoryAPI) CreateUser(ctx context.Context, input domain.CreateUserRequest) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

func (m *MockDirectoryAPI) UpdateUser(ctx context.Context, id int64, input domain.UpdateUserRequest) error {
	args := m.Called(ctx, id, input)
	return args.Error(0)
}

func (m *MockDirectoryAPI) DeleteUser(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDirectoryAPI) AllMessages(ctx context.Context) ([]domain.ChatMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatMessage), args.Error(1)
}

func (m *MockDirectoryAPI) UserMessages(ctx context.Context, userID int64) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatMessage), args.Error(1)
}

// MockConfigAPI mocks the ConfigAPI interface
type MockConfigAPI struct {
	mock.Mock
}

func (m *MockConfigAPI) Config(ctx context.Context) (*domain.AppConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AppConfig), args.Error(1)
}

func (m *MockConfigAPI) Version(ctx context.Context) (*domain.VersionResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VersionResponse), args.Error(1)
}

// MockSettingsAPI mocks the SettingsAPI interface
type MockSettingsAPI struct {
	mock.Mock
}

func (m *MockSettingsAPI) Settings(ctx context.Context) ([]domain.Setting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Setting), args.Error(1)
}

func (m *MockSettingsAPI) UpdateSetting(ctx context.Context, key string, input domain.UpdateSettingRequest) error {
	args := m.Called(ctx, key, input)
	return args.Error(0)
}

func (m *MockSettingsAPI) DeleteSetting(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockConfigReloader mocks the ConfigReloader interface
type MockConfigReloader struct {
	mock.Mock
}

func (m *MockConfigReloader) Reload(ctx context.Context) (domain.AppConfig, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.AppConfig), args.Error(1)
}

// recordingNotifier collects notifications in order
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

// fixedSession is a SessionReader with a constant snapshot
type fixedSession domain.Session

func (s fixedSession) Snapshot() domain.Session {
	return domain.Session(s)
}
