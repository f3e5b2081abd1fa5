package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/rcffuta/elib-api/pkg/errors"
)

type ttlCache struct {
	values map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newTTLCache() *ttlCache {
	return &ttlCache{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *ttlCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *ttlCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *ttlCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := pattern[:len(pattern)-1]
	for key := range m.values {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.values, key)
		}
	}
	return nil
}

func TestCacheServiceRoundTripAndInvalidate(t *testing.T) {
	store := newTTLCache()
	metrics := NewMetricsService()
	cache := NewCacheService(store, metrics, 2*time.Minute, nil, true)
	ctx := context.Background()

	var got map[string]int
	assert.False(t, cache.Get(ctx, snapshotCacheKey, &got))

	cache.Set(ctx, snapshotCacheKey, map[string]int{"downloads": 3}, 0)
	cache.Set(ctx, statsCacheKey, map[string]int{"courses": 1}, time.Minute)
	assert.Equal(t, 2*time.Minute, store.ttls[snapshotCacheKey])
	assert.Equal(t, time.Minute, store.ttls[statsCacheKey])

	require.True(t, cache.Get(ctx, snapshotCacheKey, &got))
	assert.Equal(t, 3, got["downloads"])

	cache.Invalidate(ctx, analyticsCachePattern)
	assert.False(t, cache.Get(ctx, snapshotCacheKey, &got))
	assert.Contains(t, store.values, statsCacheKey)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(2), snapshot.CacheMisses)
}

func TestCacheServiceBackendFailureIsMiss(t *testing.T) {
	store := newTTLCache()
	store.getErr = errors.New("connection refused")
	cache := NewCacheService(store, nil, time.Minute, nil, true)

	var got map[string]int
	assert.False(t, cache.Get(context.Background(), snapshotCacheKey, &got))
}

func TestCacheServiceDisabled(t *testing.T) {
	store := newTTLCache()
	cache := NewCacheService(store, nil, time.Minute, nil, false)
	cache.Set(context.Background(), snapshotCacheKey, 1, 0)
	assert.Empty(t, store.values)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	nilCache.Invalidate(context.Background(), analyticsCachePattern)
}
