package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList tells whether a still-valid token was revoked by the
// identity service, either one token by its JTI or every token of a user
// issued before a cut-off.
type RevocationList interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	IsUserTokenInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

const revocationKeyPrefix = "token:blacklist:"

// RedisRevocationList reads the revocation keys the identity service writes:
// token:blacklist:jti:<jti> for single tokens and token:blacklist:user:<id>
// holding a unix cut-off for all of a user's sessions.
type RedisRevocationList struct {
	client redis.UniversalClient
}

// NewRedisRevocationList creates a revocation list over an existing client
func NewRedisRevocationList(client redis.UniversalClient) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

func jtiKey(jti string) string { return revocationKeyPrefix + "jti:" + jti }
func userKey(userID string) string { return revocationKeyPrefix + "user:" + userID }

// IsRevoked checks if a token's JTI is on the list
func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// IsUserTokenInvalidated reports whether issuedAt is at or before the user's cut-off
func (r *RedisRevocationList) IsUserTokenInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	raw, err := r.client.Get(ctx, userKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user token invalidation: %w", err)
	}

	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse invalidation timestamp %q: %w", raw, err)
	}
	return issuedAt.Unix() <= cutoff, nil
}

// Revoke puts one token on the list until ttl passes
func (r *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// RevokeUser invalidates every token of userID issued up to now
func (r *RedisRevocationList) RevokeUser(ctx context.Context, userID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, userKey(userID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to invalidate user tokens: %w", err)
	}
	return nil
}

var _ RevocationList = (*RedisRevocationList)(nil)

// InMemoryRevocationList is a single-process RevocationList for tests and
// local development.
type InMemoryRevocationList struct {
	mu      sync.Mutex
	tokens  map[string]time.Time // jti -> expiry
	cutoffs map[string]time.Time // userID -> cut-off
}

// NewInMemoryRevocationList creates an empty list
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		tokens:  make(map[string]time.Time),
		cutoffs: make(map[string]time.Time),
	}
}

// Revoke puts one token on the list until ttl passes
func (l *InMemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[jti] = time.Now().Add(ttl)
	return nil
}

// RevokeUser invalidates every token of userID issued up to now
func (l *InMemoryRevocationList) RevokeUser(_ context.Context, userID string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cutoffs[userID] = time.Now()
	return nil
}

func (l *InMemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.tokens[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(l.tokens, jti)
		return false, nil
	}
	return true, nil
}

func (l *InMemoryRevocationList) IsUserTokenInvalidated(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff, ok := l.cutoffs[userID]
	if !ok {
		return false, nil
	}
	return !issuedAt.After(cutoff), nil
}

var _ RevocationList = (*InMemoryRevocationList)(nil)
