package redis

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore keeps one outstanding one-time token per purpose and subject.
// Key format: token:<purpose>:<subject>
type TokenStore struct {
	client redis.Cmdable
}

// NewTokenStore creates a TokenStore wrapping the given Redis client.
func NewTokenStore(client redis.Cmdable) *TokenStore {
	return &TokenStore{client: client}
}

// Save stores token for subject, replacing any previous one. It expires after ttl.
func (s *TokenStore) Save(ctx context.Context, purpose, subject, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(purpose, subject), token, ttl).Err(); err != nil {
		return fmt.Errorf("save %s token: %w", purpose, err)
	}
	return nil
}

// Match reports whether token is the outstanding token for subject.
func (s *TokenStore) Match(ctx context.Context, purpose, subject, token string) (bool, error) {
	stored, err := s.client.Get(ctx, s.key(purpose, subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("match %s token: %w", purpose, err)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

// Delete revokes the outstanding token for subject, if any.
func (s *TokenStore) Delete(ctx context.Context, purpose, subject string) error {
	if err := s.client.Del(ctx, s.key(purpose, subject)).Err(); err != nil {
		return fmt.Errorf("delete %s token: %w", purpose, err)
	}
	return nil
}

func (s *TokenStore) key(purpose, subject string) string {
	return fmt.Sprintf("token:%s:%s", purpose, subject)
}
