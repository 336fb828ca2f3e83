package store

import (
	"context"
	"strings"
	"sync"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/pubsub"
	"github.com/rs/zerolog/log"
)

// DefaultPageSize is the number of users per directory page
const DefaultPageSize = 10

// Directory is the admin user list as shown on screen
type Directory struct {
	Users    []domain.ManagedUser
	Query    string
	Page     int
	PageSize int
	// Visible is the current page of users matching Query
	Visible    []domain.ManagedUser
	Matches    int
	TotalPages int
	Loading    bool
	Error      string
}

// AdminStore owns the admin user directory
type AdminStore struct {
	api    DirectoryAPI
	notify Notifier
	state  *pubsub.Value[Directory]

	mu  sync.Mutex
	gen uint64
}

// NewAdminStore creates an admin store. A non-positive pageSize uses DefaultPageSize.
func NewAdminStore(api DirectoryAPI, notify Notifier, pageSize int) *AdminStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &AdminStore{
		api:    api,
		notify: notify,
		state:  pubsub.NewValue(paginate(Directory{Page: 1, PageSize: pageSize})),
	}
}

// Snapshot returns the current directory view
func (s *AdminStore) Snapshot() Directory {
	return s.state.Get()
}

// Subscribe returns the directory view and a channel of later views
func (s *AdminStore) Subscribe() (Directory, <-chan Directory, func()) {
	return s.state.Subscribe()
}

// LoadUsers replaces the user list with the server's
func (s *AdminStore) LoadUsers(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state.Update(func(d Directory) Directory {
		d.Loading = true
		d.Error = ""
		return d
	})
	s.mu.Unlock()

	users, err := s.api.Users(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrSuperseded
	}

	if err != nil {
		s.state.Update(func(d Directory) Directory {
			d.Loading = false
			d.Error = api.UserMessage(err)
			return d
		})
		return err
	}

	s.state.Update(func(d Directory) Directory {
		d.Users = users
		d.Loading = false
		return paginate(d)
	})
	return nil
}

// CreateUser creates an account and reloads the list
func (s *AdminStore) CreateUser(ctx context.Context, input domain.CreateUserRequest) error {
	if err := s.api.CreateUser(ctx, input); err != nil {
		return s.failed("create", err)
	}
	return s.succeeded(ctx, "user created")
}

// UpdateUser updates an account and reloads the list
func (s *AdminStore) UpdateUser(ctx context.Context, id int64, input domain.UpdateUserRequest) error {
	if err := s.api.UpdateUser(ctx, id, input); err != nil {
		return s.failed("update", err)
	}
	return s.succeeded(ctx, "user updated")
}

// DeleteUser deletes an account and reloads the list
func (s *AdminStore) DeleteUser(ctx context.Context, id int64) error {
	if err := s.api.DeleteUser(ctx, id); err != nil {
		return s.failed("delete", err)
	}
	return s.succeeded(ctx, "user deleted")
}

// Search filters the list by username or email and returns to the first page
func (s *AdminStore) Search(query string) {
	s.state.Update(func(d Directory) Directory {
		d.Query = query
		d.Page = 1
		return paginate(d)
	})
}

// SetPage moves to page, clamped to the available pages
func (s *AdminStore) SetPage(page int) {
	s.state.Update(func(d Directory) Directory {
		d.Page = page
		return paginate(d)
	})
}

// UserMessages returns the chat history of one user
func (s *AdminStore) UserMessages(ctx context.Context, userID int64) ([]domain.ChatMessage, error) {
	messages, err := s.api.UserMessages(ctx, userID)
	if err != nil {
		s.notify.Error(api.UserMessage(err))
		return nil, err
	}
	return messages, nil
}

// AllMessages returns the chat history of every user
func (s *AdminStore) AllMessages(ctx context.Context) ([]domain.ChatMessage, error) {
	messages, err := s.api.AllMessages(ctx)
	if err != nil {
		s.notify.Error(api.UserMessage(err))
		return nil, err
	}
	return messages, nil
}

func (s *AdminStore) failed(action string, err error) error {
	log.Warn().Err(err).Str("action", action).Msg("user directory change rejected")
	s.notify.Error(api.UserMessage(err))
	return err
}

func (s *AdminStore) succeeded(ctx context.Context, message string) error {
	s.notify.Success(message)
	return s.LoadUsers(ctx)
}

// paginate recomputes the visible page of d
func paginate(d Directory) Directory {
	query := strings.ToLower(strings.TrimSpace(d.Query))

	matches := make([]domain.ManagedUser, 0, len(d.Users))
	for _, u := range d.Users {
		if query == "" ||
			strings.Contains(strings.ToLower(u.Username), query) ||
			strings.Contains(strings.ToLower(u.Email), query) {
			matches = append(matches, u)
		}
	}

	d.Matches = len(matches)
	d.TotalPages = (len(matches) + d.PageSize - 1) / d.PageSize
	if d.TotalPages == 0 {
		d.TotalPages = 1
	}
	if d.Page < 1 {
		d.Page = 1
	}
	if d.Page > d.TotalPages {
		d.Page = d.TotalPages
	}

	start := (d.Page - 1) * d.PageSize
	end := start + d.PageSize
	if end > len(matches) {
		end = len(matches)
	}
	d.Visible = matches[start:end]
	return d
}
