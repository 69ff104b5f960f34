package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// lockStripes sizes the per-key mutex table of the local backend.
const lockStripes = 64

// LocalStore implements Store on an in-process TTL cache. It has no native
// ranked structure: a ranked key is stored as one JSON-encoded array blob and
// re-serialized on every append. O(n) per append, intentional — this backend
// is for single-process deployments where n stays small.
//
// Every read-modify-write is serialized through a striped per-key mutex so
// concurrent appends to the same key cannot lose an update.
type LocalStore struct {
	c     *gocache.Cache
	locks [lockStripes]sync.Mutex
}

// NewLocalStore creates a LocalStore. Expired entries are purged every
// minute.
func NewLocalStore() *LocalStore {
	return &LocalStore{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (s *LocalStore) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.locks[h.Sum32()%lockStripes]
}

func toGoCacheTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (s *LocalStore) GetBlob(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, ErrKeyMiss
	}
	blob, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("local: key %s does not hold a blob", key)
	}
	return blob, nil
}

func (s *LocalStore) SetBlob(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.c.Set(key, append([]byte(nil), val...), toGoCacheTTL(ttl))
	return nil
}

func (s *LocalStore) UpdateBlob(ctx context.Context, key string, ttl time.Duration, mutate func(prev []byte, found bool) ([]byte, error)) ([]byte, error) {
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	prev, err := s.GetBlob(ctx, key)
	found := err == nil
	if err != nil && err != ErrKeyMiss {
		return nil, err
	}
	next, err := mutate(prev, found)
	if err != nil {
		return nil, err
	}
	s.c.Set(key, next, toGoCacheTTL(ttl))
	return next, nil
}

func (s *LocalStore) AppendRanked(ctx context.Context, key string, payload []byte, ttl time.Duration) (int64, error) {
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	seq, err := s.readSeq(ctx, key)
	if err != nil {
		return 0, err
	}
	rank := int64(len(seq))
	seq = append(seq, json.RawMessage(append([]byte(nil), payload...)))
	blob, err := json.Marshal(seq)
	if err != nil {
		return 0, fmt.Errorf("local: encode ranked %s: %w", key, err)
	}
	s.c.Set(key, blob, toGoCacheTTL(ttl))
	return rank, nil
}

func (s *LocalStore) RangeRanked(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	seq, err := s.readSeq(ctx, key)
	if err != nil {
		return nil, err
	}
	n := int64(len(seq))
	start, stop = clampRange(start, stop, n)
	if start > stop {
		return nil, nil
	}
	out := make([][]byte, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, []byte(seq[i]))
	}
	return out, nil
}

func (s *LocalStore) RevRangeRanked(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	seq, err := s.readSeq(ctx, key)
	if err != nil {
		return nil, err
	}
	// Translate the caller's forward indices into reverse ranks.
	n := int64(len(seq))
	start, stop = clampRange(start, stop, n)
	if start > stop {
		return nil, nil
	}
	out := make([][]byte, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, []byte(seq[n-1-i]))
	}
	return out, nil
}

func (s *LocalStore) CountRanked(ctx context.Context, key string) (int64, error) {
	seq, err := s.readSeq(ctx, key)
	if err != nil {
		return 0, err
	}
	return int64(len(seq)), nil
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.c.Get(key)
	return ok, nil
}

func (s *LocalStore) DeleteKey(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *LocalStore) Keys(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range s.c.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *LocalStore) DeleteMatching(ctx context.Context, pattern string) error {
	keys, err := s.Keys(ctx, pattern)
	if err != nil {
		return err
	}
	for _, k := range keys {
		s.c.Delete(k)
	}
	return nil
}

// readSeq decodes the ranked-key emulation blob. An absent key is an empty
// sequence, matching the ranked backend.
func (s *LocalStore) readSeq(ctx context.Context, key string) ([]json.RawMessage, error) {
	blob, err := s.GetBlob(ctx, key)
	if err != nil {
		if err == ErrKeyMiss {
			return nil, nil
		}
		return nil, err
	}
	var seq []json.RawMessage
	if err := json.Unmarshal(blob, &seq); err != nil {
		return nil, fmt.Errorf("local: decode ranked %s: %w", key, err)
	}
	return seq, nil
}

func clampRange(start, stop, n int64) (int64, int64) {
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}
