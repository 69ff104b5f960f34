package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// maxTxRetries bounds the optimistic-lock retry loop on contended keys.
const maxTxRetries = 8

// defaultOpTimeout bounds every backend call so a stuck Redis degrades the
// caller to the durable path instead of blocking it.
const defaultOpTimeout = 3 * time.Second

// RedisStore implements Store on Redis. Ranked keys map to sorted sets with
// the rank as score, so appends and range reads are backend-native.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	opTimeout time.Duration
}

// NewRedisStore creates a RedisStore. keyPrefix namespaces every key and may
// be empty.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil for RedisStore")
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, opTimeout: defaultOpTimeout}
}

func (r *RedisStore) key(k string) string { return r.keyPrefix + k }

func (r *RedisStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *RedisStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyMiss
		}
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return val, nil
}

func (r *RedisStore) SetBlob(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	if err := r.client.Set(ctx, r.key(key), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// UpdateBlob runs mutate under WATCH so a concurrent writer invalidates the
// transaction and the read-modify-write is retried on fresh state.
func (r *RedisStore) UpdateBlob(ctx context.Context, key string, ttl time.Duration, mutate func(prev []byte, found bool) ([]byte, error)) ([]byte, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	fullKey := r.key(key)
	var next []byte
	txn := func(tx *redis.Tx) error {
		prev, err := tx.Get(ctx, fullKey).Bytes()
		found := true
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			prev, found = nil, false
		}
		next, err = mutate(prev, found)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, next, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txn, fullKey)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrNoUpdate) {
			return nil, ErrNoUpdate
		}
		return nil, fmt.Errorf("redis: update %s: %w", key, err)
	}
	return nil, fmt.Errorf("redis: update %s: %w", key, redis.TxFailedErr)
}

// AppendRanked assigns the rank inside a WATCHed transaction so two
// concurrent appends cannot claim the same rank.
func (r *RedisStore) AppendRanked(ctx context.Context, key string, payload []byte, ttl time.Duration) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	fullKey := r.key(key)
	var rank int64
	txn := func(tx *redis.Tx) error {
		count, err := tx.ZCard(ctx, fullKey).Result()
		if err != nil {
			return err
		}
		rank = count
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, fullKey, &redis.Z{Score: float64(rank), Member: payload})
			if ttl > 0 {
				pipe.Expire(ctx, fullKey, ttl)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txn, fullKey)
		if err == nil {
			return rank, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return 0, fmt.Errorf("redis: append %s: %w", key, err)
	}
	return 0, fmt.Errorf("redis: append %s: %w", key, redis.TxFailedErr)
}

func (r *RedisStore) RangeRanked(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	vals, err := r.client.ZRange(ctx, r.key(key), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: zrange %s: %w", key, err)
	}
	return toBytes(vals), nil
}

func (r *RedisStore) RevRangeRanked(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	vals, err := r.client.ZRevRange(ctx, r.key(key), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: zrevrange %s: %w", key, err)
	}
	return toBytes(vals), nil
}

func (r *RedisStore) CountRanked(ctx context.Context, key string) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	count, err := r.client.ZCard(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: zcard %s: %w", key, err)
	}
	return count, nil
}

func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *RedisStore) DeleteKey(ctx context.Context, key string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, r.key(pattern), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(r.keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan %s: %w", pattern, err)
	}
	return keys, nil
}

func (r *RedisStore) DeleteMatching(ctx context.Context, pattern string) error {
	keys, err := r.Keys(ctx, pattern)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		logrus.WithError(err).WithField("pattern", pattern).Warn("cache: bulk delete failed")
		return fmt.Errorf("redis: del matching %s: %w", pattern, err)
	}
	return nil
}

func toBytes(vals []string) [][]byte {
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out
}
