package session

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/fsechat/internal/config"
)

// Open returns the store selected by cfg.SessionStore together with a close
// function. The Redis store is pinged before it is returned.
func Open(ctx context.Context, cfg config.Config) (Store, func() error, error) {
	switch cfg.SessionStore {
	case config.SessionStoreMemory, "":
		return NewMemoryStore(), func() error { return nil }, nil
	case config.SessionStoreRedis:
		s := NewRedisStore(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		})
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
