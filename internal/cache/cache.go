package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKeyMiss indicates the key is absent. Callers treat a miss as a valid,
	// non-error outcome and fall through to durable storage.
	ErrKeyMiss = errors.New("cache: key not found")

	// ErrNoUpdate can be returned by an UpdateBlob mutator to abort the write
	// and leave the key untouched. UpdateBlob surfaces it to the caller.
	ErrNoUpdate = errors.New("cache: no update")
)

// Store is the uniform contract over the two cache backends: the ranked
// remote cache (Redis, native ordered structure) and the local blob cache
// (in-process, whole-blob emulation). Which backend is active is a
// deployment-time choice; callers must be oblivious to it.
//
// Ranked keys hold an ordered sequence of payloads addressable by rank
// (0 = oldest). Blob keys hold a single opaque value. A ttl of zero means the
// key does not expire.
type Store interface {
	// GetBlob returns the blob at key, or ErrKeyMiss.
	GetBlob(ctx context.Context, key string) ([]byte, error)

	// SetBlob stores val at key with the given ttl.
	SetBlob(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// UpdateBlob atomically applies mutate to the current value of key and
	// writes the result back. Concurrent updates to the same key must not
	// lose either write. mutate receives the previous value (found reports
	// whether the key existed) and returns the new value, or ErrNoUpdate to
	// leave the key unchanged.
	UpdateBlob(ctx context.Context, key string, ttl time.Duration, mutate func(prev []byte, found bool) ([]byte, error)) ([]byte, error)

	// AppendRanked appends payload at the next available rank (current count)
	// and refreshes the key's ttl. Returns the assigned rank. Two concurrent
	// appends must be assigned distinct ranks.
	AppendRanked(ctx context.Context, key string, payload []byte, ttl time.Duration) (int64, error)

	// RangeRanked returns payloads for ranks [start, stop] inclusive,
	// oldest-first. Out-of-range bounds are clamped; an absent key yields an
	// empty result.
	RangeRanked(ctx context.Context, key string, start, stop int64) ([][]byte, error)

	// RevRangeRanked is RangeRanked with reverse addressing: index 0 is the
	// most recent payload. The result is newest-first.
	RevRangeRanked(ctx context.Context, key string, start, stop int64) ([][]byte, error)

	// CountRanked returns the number of payloads at key (0 if absent).
	CountRanked(ctx context.Context, key string) (int64, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// DeleteKey removes key. Deleting an absent key is not an error.
	DeleteKey(ctx context.Context, key string) error

	// Keys returns all keys matching pattern. Only a trailing-wildcard
	// pattern ("prefix:*") is supported.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// DeleteMatching removes every key matching pattern (same pattern rules
	// as Keys).
	DeleteMatching(ctx context.Context, pattern string) error
}
