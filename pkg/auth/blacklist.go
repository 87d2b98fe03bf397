package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/astrapersonal/astra-api/pkg/cache"
)

// RevocationChecker reports whether a bearer token was revoked before its expiry
type RevocationChecker interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// TokenBlacklist manages revoked access tokens
type TokenBlacklist struct {
	cache *cache.Client
}

// NewTokenBlacklist creates a new token blacklist
func NewTokenBlacklist(cache *cache.Client) *TokenBlacklist {
	return &TokenBlacklist{
		cache: cache,
	}
}

// Add revokes token for the given duration
func (b *TokenBlacklist) Add(ctx context.Context, token string, expiration time.Duration) error {
	return b.cache.Set(ctx, blacklistKey(token), "revoked", expiration)
}

// RevokeUntil revokes token until its own expiry; already expired tokens are ignored
func (b *TokenBlacklist) RevokeUntil(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return b.Add(ctx, token, ttl)
}

// IsBlacklisted checks if a token is blacklisted
func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return b.cache.Exists(ctx, blacklistKey(token))
}

// blacklistKey hashes the token so raw credentials never reach Redis
func blacklistKey(token string) string {
	hash := sha256.Sum256([]byte(token))
	return fmt.Sprintf("jwt:blacklist:%s", hex.EncodeToString(hash[:]))
}
