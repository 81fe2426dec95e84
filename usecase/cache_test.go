package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainCache "github.com/vectorhub/ragcache/domains/cache"
	"github.com/vectorhub/ragcache/pkg/metrics"
)

// memStore is an in-memory Store used across the usecase tests. Error
// fields inject failures per operation.
type memStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	ttls  map[string]time.Duration
	lists map[string][][]byte

	getErr    error
	setErr    error
	deleteErr error
	pingErr   error

	getCalls int
	setCalls int
}

func newMemStore() *memStore {
	return &memStore{
		data:  make(map[string][]byte),
		ttls:  make(map[string]time.Duration),
		lists: make(map[string][][]byte),
	}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[key], nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, exists := m.data[key]; exists {
		return false, nil
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return true, nil
}

func (m *memStore) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	_, existed := m.data[key]
	delete(m.data, key)
	delete(m.ttls, key)
	return existed, nil
}

func (m *memStore) DeletePattern(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	var removed int64
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
			delete(m.ttls, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return false, m.getErr
	}
	_, ok := m.data[key]
	return ok, nil
}

func (m *memStore) Increment(_ context.Context, counterKey string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current int64
	if raw, ok := m.data[counterKey]; ok {
		_ = json.Unmarshal(raw, &current)
	}
	current += amount
	raw, _ := json.Marshal(current)
	m.data[counterKey] = raw
	return current, nil
}

func (m *memStore) ListPush(_ context.Context, listKey string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.lists[listKey] = append(m.lists[listKey], value)
	return nil
}

func (m *memStore) ListPopBlocking(_ context.Context, listKey string, _ time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	entries := m.lists[listKey]
	if len(entries) == 0 {
		return nil, nil
	}
	head := entries[0]
	m.lists[listKey] = entries[1:]
	return head, nil
}

func (m *memStore) ListRange(_ context.Context, listKey string, _, _ int64) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists[listKey], nil
}

func (m *memStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return false, nil
	}
	m.ttls[key] = ttl
	return true, nil
}

func (m *memStore) Ping(_ context.Context) error {
	return m.pingErr
}

func (m *memStore) seed(t *testing.T, key string, value any) {
	t.Helper()
	raw, err := json.Marshal(value)
	require.NoError(t, err)
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func newTestCacheService(store *memStore) domainCache.ICacheUsecase {
	return NewCacheService(store, metrics.NewRecorder(), true)
}

func TestGetWithCacheAside_HitShortCircuits(t *testing.T) {
	store := newMemStore()
	svc := newTestCacheService(store)
	ctx := context.Background()

	store.seed(t, "tenant-a:agent_config:ag-1", map[string]string{"model": "gpt-4"})

	fetchCalls := 0
	fetch := func(context.Context, string, string, domainCache.Hierarchy) (any, error) {
		fetchCalls++
		return map[string]string{"model": "stale"}, nil
	}

	value, m, err := svc.GetWithCacheAside(ctx, "agent_config", "ag-1", "tenant-a", fetch, nil, domainCache.Hierarchy{})
	require.NoError(t, err)
	assert.True(t, m.Hit)
	assert.Equal(t, domainCache.SourceCache, m.Source)
	assert.Equal(t, 0, fetchCalls)

	decoded, ok := value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gpt-4", decoded["model"])
}

func TestGetWithCacheAside_FetchPopulates(t *testing.T) {
	store := newMemStore()
	svc := newTestCacheService(store)
	ctx := context.Background()

	fetchCalls := 0
	fetch := func(context.Context, string, string, domainCache.Hierarchy) (any, error) {
		fetchCalls++
		return map[string]string{"name": "col"}, nil
	}

	_, m, err := svc.GetWithCacheAside(ctx, "collection", "col-1", "tenant-a", fetch, nil, domainCache.Hierarchy{})
	require.NoError(t, err)
	assert.False(t, m.Hit)
	assert.Equal(t, domainCache.SourceDatabase, m.Source)
	assert.Equal(t, 1, fetchCalls)
	assert.True(t, store.has("tenant-a:collection:col-1"))

	// Second read is served from cache.
	_, m, err = svc.GetWithCacheAside(ctx, "collection", "col-1", "tenant-a", fetch, nil, domainCache.Hierarchy{})
	require.NoError(t, err)
	assert.True(t, m.Hit)
	assert.Equal(t, 1, fetchCalls)
}

func TestGetWithCacheAside_GenerateFallback(t *testing.T) {
	store := newMemStore()
	svc := newTestCacheService(store)
	ctx := context.Background()

	fetch := func(context.Context, string, string, domainCache.Hierarchy) (any, error) {
		return nil, nil
	}
	generated := 0
	generate := func(context.Context, string, string) (any, error) {
		generated++
		return []float64{0.1, 0.2}, nil
	}

	value, m, err := svc.GetWithCacheAside(ctx, "embedding", "emb-1", "tenant-a", fetch, generate, domainCache.Hierarchy{})
	require.NoError(t, err)
	assert.Equal(t, domainCache.SourceGeneration, m.Source)
	assert.Equal(t, 1, generated)
	assert.NotNil(t, value)
	assert.True(t, store.has("tenant-a:embedding:emb-1"))
}

func TestGetWithCacheAside_AllTiersAbsent(t *testing.T) {
	store := newMemStore()
	svc := newTestCacheService(store)

	fetch := func(context.Context, string, string, domainCache.Hierarchy) (any, error) {
		return nil, nil
	}
	generate := func(context.Context, string, string) (any, error) {
		return nil, nil
	}

	value, m, err := svc.GetWithCacheAside(context.Background(), "document", "doc-x", "tenant-a", fetch, generate, domainCache.Hierarchy{})
	require.NoError(t, err)
	assert.Nil(t, value)
	assert.False(t, m.Hit)
	assert.Equal(t, domainCache.SourceNone, m.Source)
}

func TestGetWithCacheAside_StoreDownDegradesToMiss(t *testing.T) {
	store := newMemStore()
	store.getErr = domainCache.ErrUnavailable
	svc := newTestCacheService(store)

	fetch := func(context.Context, string, string, domainCache.Hierarchy) (any, error) {
		return "from-db", nil
	}

	value, m, err := svc.GetWithCacheAside(context.Background(), "document", "doc-1", "tenant-a", fetch, nil, domainCache.Hierarchy{})
	require.NoError(t, err)
	assert.Equal(t, "from-db", value)
	assert.Equal(t, domainCache.SourceDatabase, m.Source)
}

func TestGetWithCacheAside_FetchErrorPropagates(t *testing.T) {
	store := newMemStore()
	svc := newTestCacheService(store)

	fetch := func(context.Context, string, string, domainCache.Hierarchy) (any, error) {
		return nil, assert.AnError
	}

	_, m, err := svc.GetWithCacheAside(context.Background(), "document", "doc-1", "tenant-a", fetch, nil, domainCache.Hierarchy{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, domainCache.SourceNone, m.Source)
	assert.False(t, store.has("tenant-a:document:doc-1"))
}

func TestGetWithCacheAside_DisabledBypassesStore(t *testing.T) {
	store := newMemStore()
	svc := NewCacheService(store, metrics.NewRecorder(), false)

	fetch := func(context.Context, string, string, domainCache.Hierarchy) (any, error) {
		return "value", nil
	}

	value, _, err := svc.GetWithCacheAside(context.Background(), "document", "doc-1", "tenant-a", fetch, nil, domainCache.Hierarchy{})
	require.NoError(t, err)
	assert.Equal(t, "value", value)
	assert.Equal(t, 0, store.getCalls)
	assert.False(t, store.has("tenant-a:document:doc-1"))
}

func TestGetWithCacheAside_CorruptEntryDropped(t *testing.T) {
	store := newMemStore()
	svc := newTestCacheService(store)
	store.mu.Lock()
	store.data["tenant-a:document:doc-1"] = []byte("{not json")
	store.mu.Unlock()

	fetch := func(context.Context, string, string, domainCache.Hierarchy) (any, error) {
		return "fresh", nil
	}

	value, m, err := svc.GetWithCacheAside(context.Background(), "document", "doc-1", "tenant-a", fetch, nil, domainCache.Hierarchy{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", value)
	assert.Equal(t, domainCache.SourceDatabase, m.Source)
}

func TestSet_UsesTTLClassOfDataType(t *testing.T) {
	store := newMemStore()
	svc := newTestCacheService(store)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "embedding", "emb-1", "tenant-a", "v", domainCache.Hierarchy{}))
	require.NoError(t, svc.Set(ctx, "agent_config", "ag-1", "tenant-a", "v", domainCache.Hierarchy{}))
	require.NoError(t, svc.Set(ctx, "made_up_type", "x-1", "tenant-a", "v", domainCache.Hierarchy{}))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 86400*time.Second, store.ttls["tenant-a:embedding:emb-1"])
	assert.Equal(t, 3600*time.Second, store.ttls["tenant-a:agent_config:ag-1"])
	assert.Equal(t, 3600*time.Second, store.ttls["tenant-a:made_up_type:x-1"])
}

func TestInvalidate_Idempotent(t *testing.T) {
	store := newMemStore()
	svc := newTestCacheService(store)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "document", "doc-1", "tenant-a", "v", domainCache.Hierarchy{}))

	removed, err := svc.Invalidate(ctx, "document", "doc-1", "tenant-a", domainCache.Hierarchy{})
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Invalidate(ctx, "document", "doc-1", "tenant-a", domainCache.Hierarchy{})
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestInvalidateCoordinated_WildcardStaysInTenant(t *testing.T) {
	store := newMemStore()
	svc := newTestCacheService(store)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "document", "doc-1", "tenant-a", "v", domainCache.Hierarchy{}))
	require.NoError(t, svc.Set(ctx, "query_result", "q-1", "tenant-a", "v", domainCache.Hierarchy{}))
	require.NoError(t, svc.Set(ctx, "query_result", "q-2", "tenant-a", "v", domainCache.Hierarchy{}))
	require.NoError(t, svc.Set(ctx, "query_result", "q-1", "tenant-b", "v", domainCache.Hierarchy{}))

	counts := svc.InvalidateCoordinated(ctx, "tenant-a", "document", "doc-1", []domainCache.RelatedInvalidation{
		{DataType: "query_result", ResourceID: domainCache.Wildcard},
	})

	assert.Equal(t, int64(1), counts["document"])
	assert.Equal(t, int64(2), counts["query_result"])
	assert.False(t, store.has("tenant-a:query_result:q-1"))
	assert.True(t, store.has("tenant-b:query_result:q-1"))
}

func TestInvalidateCoordinated_StoreFailureSwallowed(t *testing.T) {
	store := newMemStore()
	store.deleteErr = domainCache.ErrUnavailable
	svc := newTestCacheService(store)

	counts := svc.InvalidateCoordinated(context.Background(), "tenant-a", "document", "doc-1", []domainCache.RelatedInvalidation{
		{DataType: "query_result", ResourceID: domainCache.Wildcard},
	})

	assert.Equal(t, int64(0), counts["document"])
	assert.Equal(t, int64(0), counts["query_result"])
}

func TestGetStats_HitRate(t *testing.T) {
	store := newMemStore()
	svc := newTestCacheService(store)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "document", "doc-1", "tenant-a", "v", domainCache.Hierarchy{}))

	fetch := func(context.Context, string, string, domainCache.Hierarchy) (any, error) {
		return "v", nil
	}
	_, _, err := svc.GetWithCacheAside(ctx, "document", "doc-1", "tenant-a", fetch, nil, domainCache.Hierarchy{})
	require.NoError(t, err)
	_, _, err = svc.GetWithCacheAside(ctx, "document", "doc-miss", "tenant-a", fetch, nil, domainCache.Hierarchy{})
	require.NoError(t, err)

	stats := svc.GetStats(ctx)
	assert.True(t, stats.Available)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}
