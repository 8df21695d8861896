package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "jwt:blacklist:"

// TokenBlacklist remembers revoked tokens until they would have expired anyway.
// Redis is preferred when available; otherwise entries live in process memory.
type TokenBlacklist struct {
	rc *redis.Client

	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewTokenBlacklist creates a blacklist. rc may be nil.
func NewTokenBlacklist(rc *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{
		rc:      rc,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke stores token until expiresAt. Tokens already past expiry are ignored.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return b.rc.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
	}

	b.mu.Lock()
	b.entries[token] = expiresAt
	b.pruneLocked()
	b.mu.Unlock()
	return nil
}

// IsRevoked reports whether token was revoked before its natural expiration.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) bool {
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := b.rc.Exists(ctx, blacklistPrefix+token).Result()
		if err != nil {
			// fail open so a redis outage does not lock everyone out
			Sugar.Warnf("token blacklist lookup failed: %v", err)
			return false
		}
		return n > 0
	}

	b.mu.RLock()
	exp, ok := b.entries[token]
	b.mu.RUnlock()
	return ok && b.now().Before(exp)
}

func (b *TokenBlacklist) pruneLocked() {
	now := b.now()
	for token, exp := range b.entries {
		if !now.Before(exp) {
			delete(b.entries, token)
		}
	}
}
