package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "fsechat:"
	TTL      time.Duration // Expiration for idle sessions, 0 keeps them forever
}

// RedisStore keeps turn state in Redis so several processes can share sessions.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store connected to opts.Addr.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "fsechat:"
	}

	return &RedisStore{client: client, prefix: prefix, ttl: opts.TTL}
}

func (s *RedisStore) stateKey(id string) string {
	return fmt.Sprintf("%ssession:%s", s.prefix, id)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "sessions"
}

func (s *RedisStore) currentKey() string {
	return s.prefix + "current"
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*chat.TurnState, error) {
	data, err := s.client.Get(ctx, s.stateKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load session from redis: %w", err)
	}
	return decode(data)
}

// Save stores state and refreshes its expiry. The version check and the
// write run in one WATCH/MULTI transaction, so a concurrent save from another
// process makes this one fail with ErrConflict.
func (s *RedisStore) Save(ctx context.Context, state *chat.TurnState) error {
	data, next, err := encodeNext(state)
	if err != nil {
		return err
	}

	key := s.stateKey(state.SessionID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		var stored int64
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if stored, err = storedVersion(current); err != nil {
				return err
			}
		}
		if stored != state.Version {
			return fmt.Errorf("%s: %w", state.SessionID, ErrConflict)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.SAdd(ctx, s.indexKey(), state.SessionID)
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%s: %w", state.SessionID, ErrConflict)
	case errors.Is(err, ErrConflict):
		return err
	case err != nil:
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	state.Version = next
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.stateKey(sessionID))
	pipe.SRem(ctx, s.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}

	current, err := s.Current(ctx)
	if err == nil && current == sessionID {
		if err := s.client.Del(ctx, s.currentKey()).Err(); err != nil {
			return fmt.Errorf("failed to clear current session: %w", err)
		}
	}
	return nil
}

// List returns the ids of sessions whose state has not expired.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.stateKey(id)
	}
	// MGet returns nil for expired keys; prune them from the index.
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}

	live := make([]string, 0, len(ids))
	var expired []any
	for i, v := range values {
		if v == nil {
			expired = append(expired, ids[i])
			continue
		}
		live = append(live, ids[i])
	}
	if len(expired) > 0 {
		if err := s.client.SRem(ctx, s.indexKey(), expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
		}
	}

	sort.Strings(live)
	return live, nil
}

func (s *RedisStore) SetCurrent(ctx context.Context, sessionID string) error {
	if err := s.client.Set(ctx, s.currentKey(), sessionID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set current session: %w", err)
	}
	return nil
}

func (s *RedisStore) Current(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, s.currentKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read current session: %w", err)
	}
	return id, nil
}
