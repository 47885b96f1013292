package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"filesmanager/internal/util"
)

const (
	// SessionKeyPrefix namespaces session keys: auth_<token> -> user id.
	SessionKeyPrefix = "auth_"
	// DefaultSessionTTL is the absolute lifetime of a token.
	DefaultSessionTTL = 24 * time.Hour

	sessionOpTimeout = 3 * time.Second
)

// RedisSessionStore keeps sessions in Redis. The TTL is set once when the
// session is created and never extended by reads.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore wraps an existing client. A non-positive ttl selects
// DefaultSessionTTL.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

// NewSession mints a random token for userID and stores it with the TTL.
func (s *RedisSessionStore) NewSession(ctx context.Context, userID string) (string, error) {
	token := util.NewUUID()
	ctx, cancel := context.WithTimeout(ctx, sessionOpTimeout)
	defer cancel()
	if err := s.client.Set(ctx, sessionKey(token), userID, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// GetUserIDByToken resolves token to a user id. Plain GET leaves the TTL alone.
func (s *RedisSessionStore) GetUserIDByToken(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, sessionOpTimeout)
	defer cancel()
	val, err := s.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// DeleteSession removes a token mapping. Missing tokens are not an error.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, sessionOpTimeout)
	defer cancel()
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *RedisSessionStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sessionOpTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func sessionKey(token string) string {
	return SessionKeyPrefix + token
}
