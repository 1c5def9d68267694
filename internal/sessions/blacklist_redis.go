package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "notekeeper:revoked:"

var blacklistClient *redis.Client

// SetBlacklistClient sets the Redis client holding revoked bearer tokens.
// With nil, revocation is disabled and every token passes the check.
func SetBlacklistClient(c *redis.Client) {
	blacklistClient = c
}

// revokedKey stores a digest rather than the token itself.
func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revokedPrefix + hex.EncodeToString(sum[:])
}

// BlacklistAccessToken revokes token until ttl elapses, which should be the
// token's remaining lifetime. A non-positive ttl means the token has already
// expired and there is nothing to revoke.
func BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	if blacklistClient == nil || token == "" || ttl <= 0 {
		return nil
	}
	return blacklistClient.Set(ctx, revokedKey(token), time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

func IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if blacklistClient == nil || token == "" {
		return false, nil
	}
	n, err := blacklistClient.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
