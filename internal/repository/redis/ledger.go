package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giecabral/team-flow-management/internal/domain"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

const (
	tokenKeyPrefix = "refresh:"
	userKeyPrefix  = "refresh:user:"

	// expiredGrace keeps a record around after expiry so a late refresh is
	// reported as expired rather than unknown.
	expiredGrace = 24 * time.Hour
)

// RefreshTokenLedger implements repository.RefreshTokenLedger on Redis.
// Each record lives under refresh:<hash> as "user|expires|created" with a
// TTL, and refresh:user:<id> indexes a user's hashes for bulk revocation.
type RefreshTokenLedger struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRefreshTokenLedger creates a Redis-backed ledger.
func NewRefreshTokenLedger(client redis.UniversalClient) *RefreshTokenLedger {
	return &RefreshTokenLedger{client: client, now: time.Now}
}

func tokenKey(hash string) string  { return tokenKeyPrefix + hash }
func userKey(userID string) string { return userKeyPrefix + userID }

// Store writes the record and indexes it under its user.
func (l *RefreshTokenLedger) Store(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	now := l.now().UTC()
	ttl := expiresAt.Sub(now) + expiredGrace
	if ttl <= 0 {
		return nil
	}

	record := encodeRecord(domain.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKey(tokenHash), record, ttl)
		pipe.SAdd(ctx, userKey(userID), tokenHash)
		pipe.Expire(ctx, userKey(userID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// FindByHash reads a record without consuming it.
func (l *RefreshTokenLedger) FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	val, err := l.client.Get(ctx, tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return decodeRecord(tokenHash, val)
}

// Consume removes the record with GETDEL, which Redis executes atomically,
// so only one caller can ever observe a given record.
func (l *RefreshTokenLedger) Consume(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	val, err := l.client.GetDel(ctx, tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	rec, err := decodeRecord(tokenHash, val)
	if err != nil {
		return nil, err
	}
	if err := l.client.SRem(ctx, userKey(rec.UserID), tokenHash).Err(); err != nil {
		return nil, fmt.Errorf("unindex refresh token: %w", err)
	}
	return rec, nil
}

// DeleteByHash removes a record if present.
func (l *RefreshTokenLedger) DeleteByHash(ctx context.Context, tokenHash string) error {
	_, err := l.Consume(ctx, tokenHash)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}

// DeleteForUser removes the record only when userID owns it.
func (l *RefreshTokenLedger) DeleteForUser(ctx context.Context, userID, tokenHash string) error {
	removed, err := l.client.SRem(ctx, userKey(userID), tokenHash).Result()
	if err != nil {
		return fmt.Errorf("unindex refresh token: %w", err)
	}
	if removed == 0 {
		return nil
	}
	if err := l.client.Del(ctx, tokenKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// deleteAllScript drops every token listed in a user's index and then the
// index itself. It runs as one script so a Store cannot slip in between.
var deleteAllScript = redis.NewScript(`
local hashes = redis.call('SMEMBERS', KEYS[1])
for _, h in ipairs(hashes) do
	redis.call('DEL', ARGV[1] .. h)
end
redis.call('DEL', KEYS[1])
return #hashes
`)

// DeleteAllForUser removes every indexed record of the user.
func (l *RefreshTokenLedger) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := deleteAllScript.Run(ctx, l.client, []string{userKey(userID)}, tokenKeyPrefix).Err(); err != nil {
		return fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts records by TTL.
func (l *RefreshTokenLedger) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping reports whether Redis is reachable, for readiness checks.
func (l *RefreshTokenLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func encodeRecord(t domain.RefreshToken) string {
	return t.UserID + "|" +
		strconv.FormatInt(t.ExpiresAt.UnixMilli(), 10) + "|" +
		strconv.FormatInt(t.CreatedAt.UnixMilli(), 10)
}

func decodeRecord(tokenHash, val string) (*domain.RefreshToken, error) {
	parts := strings.Split(val, "|")
	if len(parts) != 3 || parts[0] == "" {
		return nil, fmt.Errorf("decode refresh token record: malformed value")
	}
	expires, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode refresh token expiry: %w", err)
	}
	created, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode refresh token creation: %w", err)
	}
	return &domain.RefreshToken{
		UserID:    parts[0],
		TokenHash: tokenHash,
		ExpiresAt: time.UnixMilli(expires).UTC(),
		CreatedAt: time.UnixMilli(created).UTC(),
	}, nil
}
