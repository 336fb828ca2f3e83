// Package repository opens the persisted client state backend.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/repository/file"
	"github.com/Rrens/support-chat/internal/repository/memory"
	"github.com/Rrens/support-chat/internal/repository/redis"
	"github.com/Rrens/support-chat/internal/repository/sqlite"
	"github.com/Rrens/support-chat/internal/security"
)

// Open returns the LocalStorage selected by cfg.Backend
func Open(ctx context.Context, cfg config.StorageConfig) (domain.LocalStorage, error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewStorage(), nil
	case "file":
		cipher, err := security.NewCipher(cfg.EncryptionKey)
		if err != nil && !errors.Is(err, security.ErrNoKey) {
			return nil, err
		}
		return file.NewStorage(cfg.Path, cipher)
	case "sqlite":
		return sqlite.NewStorage(ctx, cfg.SQLitePath)
	case "redis":
		return redis.NewStorage(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
