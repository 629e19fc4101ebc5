package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisJTIPrefix    = "medrec:revoked:jti:"
	redisCutoffPrefix = "medrec:revoked:user:"
)

// RedisRevocationStore shares revocations between server instances. Keys
// carry a TTL so expired revocations disappear on their own.
type RedisRevocationStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisRevocationStore(rdb *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb, now: time.Now}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, redisJTIPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, redisJTIPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}

// RevokeAllForUser stores the cutoff as unix nanoseconds. An existing later
// cutoff is kept.
func (s *RedisRevocationStore) RevokeAllForUser(ctx context.Context, userID int64, cutoff time.Time, retain time.Duration) error {
	key := redisCutoffPrefix + strconv.FormatInt(userID, 10)
	cur, ok, err := s.UserCutoff(ctx, userID)
	if err != nil {
		return err
	}
	if ok && cur.After(cutoff) {
		return nil
	}
	if err := s.rdb.Set(ctx, key, cutoff.UnixNano(), retain).Err(); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) UserCutoff(ctx context.Context, userID int64) (time.Time, bool, error) {
	val, err := s.rdb.Get(ctx, redisCutoffPrefix+strconv.FormatInt(userID, 10)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read user revocation: %w", err)
	}
	return time.Unix(0, val), true, nil
}
