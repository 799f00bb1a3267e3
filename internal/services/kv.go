package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ytakahashi/taskflow/internal/config"
)

// ErrKeyNotFound is returned by KV.Get when the key has never been set or was deleted.
var ErrKeyNotFound = errors.New("key not found")

// KV is the string key/value persistence capability every component writes through.
// Implementations must be safe for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (KV, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryKV(), nil
	case "", "sqlite":
		return OpenSQLiteKV(cfg.Path)
	case "firestore":
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the firestore backend")
		}
		return NewFirestoreKV(ctx, cfg.ProjectID)
	case "redis":
		return NewRedisKV(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		return NewPostgresKV(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
