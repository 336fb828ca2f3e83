package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/support-chat/internal/devserver/storage"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, password_hash, is_admin, is_active, license_expires_at, theme, created_at`

var _ storage.Repository = (*Repository)(nil)

// Repository implements storage.Repository
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository over pool
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanAccount(row pgx.Row) (storage.Account, error) {
	var acc storage.Account
	err := row.Scan(
		&acc.User.ID,
		&acc.User.Username,
		&acc.User.Email,
		&acc.PasswordHash,
		&acc.User.IsAdmin,
		&acc.User.IsActive,
		&acc.User.LicenseExpiresAt,
		&acc.User.Theme,
		&acc.User.CreatedAt,
	)
	if err != nil {
		return storage.Account{}, err
	}
	acc.User.CreatedAt = acc.User.CreatedAt.UTC()
	if acc.User.LicenseExpiresAt != nil {
		t := acc.User.LicenseExpiresAt.UTC()
		acc.User.LicenseExpiresAt = &t
	}
	return acc, nil
}

func (r *Repository) CreateUser(ctx context.Context, account storage.Account) (domain.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, is_admin, is_active, license_expires_at, theme, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		RETURNING ` + userColumns
	u := account.User
	var createdAt any
	if !u.CreatedAt.IsZero() {
		createdAt = u.CreatedAt
	}
	acc, err := scanAccount(r.pool.QueryRow(ctx, query,
		u.Username,
		u.Email,
		account.PasswordHash,
		u.IsAdmin,
		u.IsActive,
		u.LicenseExpiresAt,
		u.Theme,
		createdAt,
	))
	if isUniqueViolation(err) {
		return domain.User{}, storage.ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return acc.User, nil
}

func (r *Repository) UserByID(ctx context.Context, id int64) (storage.Account, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	acc, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Account{}, storage.ErrUserNotFound
	}
	if err != nil {
		return storage.Account{}, fmt.Errorf("failed to get user: %w", err)
	}
	return acc, nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (storage.Account, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	acc, err := scanAccount(r.pool.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Account{}, storage.ErrUserNotFound
	}
	if err != nil {
		return storage.Account{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return acc, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, acc.User)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *Repository) UpdateUser(ctx context.Context, id int64, patch storage.UserPatch) (domain.User, error) {
	query := `
		UPDATE users SET
			username = COALESCE($2, username),
			email = COALESCE($3, email),
			theme = COALESCE($4, theme),
			password_hash = COALESCE($5, password_hash),
			license_expires_at = COALESCE($6, license_expires_at),
			is_admin = COALESCE($7, is_admin),
			is_active = COALESCE($8, is_active)
		WHERE id = $1
		RETURNING ` + userColumns
	acc, err := scanAccount(r.pool.QueryRow(ctx, query,
		id,
		patch.Username,
		patch.Email,
		patch.Theme,
		patch.PasswordHash,
		patch.LicenseExpiresAt,
		patch.IsAdmin,
		patch.IsActive,
	))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.User{}, storage.ErrUserNotFound
	case isUniqueViolation(err):
		return domain.User{}, storage.ErrEmailTaken
	case err != nil:
		return domain.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return acc.User, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	// messages go with the user through ON DELETE CASCADE
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

func scanMessage(row pgx.Row) (domain.ChatMessage, error) {
	var (
		msg    domain.ChatMessage
		id     int64
		userID int64
		sender string
	)
	if err := row.Scan(&id, &userID, &sender, &msg.Content, &msg.Timestamp); err != nil {
		return domain.ChatMessage{}, err
	}
	msg.ID = &id
	msg.UserID = &userID
	msg.Sender = domain.Sender(sender)
	msg.Timestamp = msg.Timestamp.UTC()
	return msg, nil
}

func (r *Repository) AddMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if msg.UserID == nil {
		return domain.ChatMessage{}, storage.ErrUserNotFound
	}
	query := `
		INSERT INTO messages (user_id, sender, content, created_at)
		VALUES ($1, $2, $3, COALESCE($4, NOW()))
		RETURNING id, user_id, sender, content, created_at
	`
	var createdAt any
	if !msg.Timestamp.IsZero() {
		createdAt = msg.Timestamp
	}
	stored, err := scanMessage(r.pool.QueryRow(ctx, query, *msg.UserID, string(msg.Sender), msg.Content, createdAt))
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("failed to add message: %w", err)
	}
	return stored, nil
}

func (r *Repository) queryMessages(ctx context.Context, query string, args ...any) ([]domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.ChatMessage{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (r *Repository) Messages(ctx context.Context, userID int64) ([]domain.ChatMessage, error) {
	return r.queryMessages(ctx, `
		SELECT id, user_id, sender, content, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY id
	`, userID)
}

func (r *Repository) AllMessages(ctx context.Context) ([]domain.ChatMessage, error) {
	return r.queryMessages(ctx, `
		SELECT id, user_id, sender, content, created_at
		FROM messages
		ORDER BY id
	`)
}

const settingColumns = `id, key, value, description, created_at, updated_at`

func scanSetting(row pgx.Row) (domain.Setting, error) {
	var s domain.Setting
	if err := row.Scan(&s.ID, &s.Key, &s.Value, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.Setting{}, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func (r *Repository) Settings(ctx context.Context) ([]domain.Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+settingColumns+` FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := []domain.Setting{}
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}

func (r *Repository) Setting(ctx context.Context, key string) (domain.Setting, error) {
	s, err := scanSetting(r.pool.QueryRow(ctx, `SELECT `+settingColumns+` FROM settings WHERE key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Setting{}, storage.ErrSettingNotFound
	}
	if err != nil {
		return domain.Setting{}, fmt.Errorf("failed to get setting: %w", err)
	}
	return s, nil
}

func (r *Repository) PutSetting(ctx context.Context, key, value string, description *string) (domain.Setting, error) {
	query := `
		INSERT INTO settings (key, value, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			description = COALESCE(EXCLUDED.description, settings.description),
			updated_at = NOW()
		RETURNING ` + settingColumns
	s, err := scanSetting(r.pool.QueryRow(ctx, query, key, value, description))
	if err != nil {
		return domain.Setting{}, fmt.Errorf("failed to put setting: %w", err)
	}
	return s, nil
}

func (r *Repository) DeleteSetting(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrSettingNotFound
	}
	return nil
}

// Close releases the pool
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
