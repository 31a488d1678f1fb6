// Package tokenindex implements the auth.TokenIndex contract on top
// of Redis. Keys follow the layout
//
//	tokens:{tenant_id}:{user_id}         -> active access token
//	refresh_tokens:{tenant_id}:{user_id} -> active refresh token
//
// so tenant-wide revocation is a pattern scan and per-user revocation
// is a two-key delete.
package tokenindex

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TamirHazut/ERP/internal/auth"
)

const (
	accessKeyPrefix  = "tokens"
	refreshKeyPrefix = "refresh_tokens"

	scanBatchSize = 256
)

// compareAndDelete removes the pair only when the stored access token
// matches, so a revoke never clobbers a pair written by a concurrent
// login. Returns the number of keys deleted.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1], KEYS[2])
end
return 0
`)

// compareAndSwapPair replaces both tokens only while the stored refresh
// token still equals the presented one, so a rotation that validated
// against a stale token can never overwrite a newer pair.
var compareAndSwapPair = redis.NewScript(`
if redis.call("GET", KEYS[2]) == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
  redis.call("SET", KEYS[2], ARGV[4], "PX", ARGV[5])
  return 1
end
return 0
`)

// Index is a Redis-backed token index.
type Index struct {
	rdb redis.UniversalClient
}

// New wraps an established Redis client.
func New(rdb redis.UniversalClient) *Index {
	return &Index{rdb: rdb}
}

var _ auth.TokenIndex = (*Index)(nil)

func accessKey(tenantID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", accessKeyPrefix, tenantID, userID)
}

func refreshKey(tenantID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", refreshKeyPrefix, tenantID, userID)
}

// PutPair stores both tokens in one transaction so a reader never
// observes a half-written pair.
func (i *Index) PutPair(ctx context.Context, tenantID, userID, access string, accessTTL time.Duration, refresh string, refreshTTL time.Duration) error {
	pipe := i.rdb.TxPipeline()
	pipe.Set(ctx, accessKey(tenantID, userID), access, accessTTL)
	pipe.Set(ctx, refreshKey(tenantID, userID), refresh, refreshTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tokenindex: put pair: %w", err)
	}
	return nil
}

// Access returns the active access token.
func (i *Index) Access(ctx context.Context, tenantID, userID string) (string, error) {
	return i.get(ctx, accessKey(tenantID, userID))
}

// Refresh returns the active refresh token.
func (i *Index) Refresh(ctx context.Context, tenantID, userID string) (string, error) {
	return i.get(ctx, refreshKey(tenantID, userID))
}

func (i *Index) get(ctx context.Context, key string) (string, error) {
	val, err := i.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", auth.ErrNotFound
		}
		return "", fmt.Errorf("tokenindex: get %s: %w", key, err)
	}
	return val, nil
}

// DeletePair removes both tokens. Absent keys are not an error.
func (i *Index) DeletePair(ctx context.Context, tenantID, userID string) error {
	if err := i.rdb.Del(ctx, accessKey(tenantID, userID), refreshKey(tenantID, userID)).Err(); err != nil {
		return fmt.Errorf("tokenindex: delete pair: %w", err)
	}
	return nil
}

// CompareAndDelete removes the pair only if the stored access token
// equals the supplied one.
func (i *Index) CompareAndDelete(ctx context.Context, tenantID, userID, access string) (bool, error) {
	keys := []string{accessKey(tenantID, userID), refreshKey(tenantID, userID)}
	n, err := compareAndDelete.Run(ctx, i.rdb, keys, access).Int64()
	if err != nil {
		return false, fmt.Errorf("tokenindex: compare and delete: %w", err)
	}
	return n > 0, nil
}

// ReplacePair rotates the pair with a Lua compare-and-swap keyed on
// the stored refresh token.
func (i *Index) ReplacePair(ctx context.Context, tenantID, userID, oldRefresh, access string, accessTTL time.Duration, refresh string, refreshTTL time.Duration) (bool, error) {
	keys := []string{accessKey(tenantID, userID), refreshKey(tenantID, userID)}
	n, err := compareAndSwapPair.Run(ctx, i.rdb, keys,
		oldRefresh,
		access, accessTTL.Milliseconds(),
		refresh, refreshTTL.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("tokenindex: replace pair: %w", err)
	}
	return n > 0, nil
}

// FindRefreshOwner scans the tenant's refresh slots for the supplied
// token and returns the owning user id. The comparison is
// constant-time per candidate. Returns auth.ErrNotFound when no slot
// holds the token.
func (i *Index) FindRefreshOwner(ctx context.Context, tenantID, refresh string) (string, error) {
	prefix := fmt.Sprintf("%s:%s:", refreshKeyPrefix, tenantID)
	keys, err := i.scanKeys(ctx, prefix+"*")
	if err != nil {
		return "", err
	}
	for batch := range batches(keys, scanBatchSize) {
		vals, err := i.rdb.MGet(ctx, batch...).Result()
		if err != nil {
			return "", fmt.Errorf("tokenindex: find refresh owner: %w", err)
		}
		for n, v := range vals {
			stored, ok := v.(string)
			if !ok {
				continue
			}
			if subtle.ConstantTimeCompare([]byte(stored), []byte(refresh)) == 1 {
				return strings.TrimPrefix(batch[n], prefix), nil
			}
		}
	}
	return "", auth.ErrNotFound
}

// RevokeTenant deletes every pair in the tenant and reports how many
// access and refresh tokens were removed, counted separately because
// an idle session often holds only its refresh half. The scan is a
// snapshot: pairs written after the scan completes survive, and the
// counts reflect keys actually deleted rather than keys seen.
func (i *Index) RevokeTenant(ctx context.Context, tenantID string) (int64, int64, error) {
	accessKeys, err := i.scanKeys(ctx, fmt.Sprintf("%s:%s:*", accessKeyPrefix, tenantID))
	if err != nil {
		return 0, 0, err
	}
	refreshKeys, err := i.scanKeys(ctx, fmt.Sprintf("%s:%s:*", refreshKeyPrefix, tenantID))
	if err != nil {
		return 0, 0, err
	}

	var access, refresh int64
	for batch := range batches(accessKeys, scanBatchSize) {
		n, err := i.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return access, refresh, fmt.Errorf("tokenindex: revoke tenant: %w", err)
		}
		access += n
	}
	for batch := range batches(refreshKeys, scanBatchSize) {
		n, err := i.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return access, refresh, fmt.Errorf("tokenindex: revoke tenant: %w", err)
		}
		refresh += n
	}
	return access, refresh, nil
}

func (i *Index) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := i.rdb.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("tokenindex: scan %s: %w", pattern, err)
	}
	return keys, nil
}

func batches(keys []string, size int) func(yield func([]string) bool) {
	return func(yield func([]string) bool) {
		for start := 0; start < len(keys); start += size {
			end := start + size
			if end > len(keys) {
				end = len(keys)
			}
			if !yield(keys[start:end]) {
				return
			}
		}
	}
}
