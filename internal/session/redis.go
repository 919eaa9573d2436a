package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

const keyPrefix = "devforge:session:"

// RedisStore shares the session map between nodes. Expiry is delegated to
// redis through SET ... EX.
type RedisStore struct {
	log    *logger.Logger
	client redis.UniversalClient
}

func NewRedisStore(log *logger.Logger, client redis.UniversalClient) *RedisStore {
	return &RedisStore{log: log.With("component", "RedisSessionStore"), client: client}
}

// DialRedis pings before handing the client out, like the pub/sub setup does.
func DialRedis(ctx context.Context, address, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: address, Password: password})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", s.ID)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, keyPrefix+s.ID, raw, ttl).Err(); err != nil {
		r.log.Warn("failed to store session", "error", err)
		return err
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, keyPrefix+id).Err()
}
