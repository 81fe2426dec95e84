package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks connectivity or timeout failures against the
// cache store. Read paths downgrade it to a miss; it must never reach
// an API caller.
var ErrUnavailable = errors.New("cache store unavailable")

// Store is the tenant-agnostic key-value adapter. Tenancy lives in the
// key, never as a separate filter, so the adapter stays storage-agnostic.
// Values are opaque JSON bytes. A nil value with a nil error is a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set with ttl 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent is atomic at the storage layer (SET-NX). Returns
	// false when the key already existed.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	// DeletePattern removes every key matching prefix+"*" and returns
	// the number removed.
	DeletePattern(ctx context.Context, prefix string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Increment(ctx context.Context, counterKey string, amount int64) (int64, error)
	ListPush(ctx context.Context, listKey string, value []byte) error
	// ListPopBlocking waits up to timeout and returns (nil, nil) when
	// nothing arrived.
	ListPopBlocking(ctx context.Context, listKey string, timeout time.Duration) ([]byte, error)
	ListRange(ctx context.Context, listKey string, start, stop int64) ([][]byte, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Ping(ctx context.Context) error
}

// Source tags which tier of the read path produced a value.
type Source string

const (
	SourceCache      Source = "cache"
	SourceDatabase   Source = "database"
	SourceGeneration Source = "generation"
	SourceNone       Source = "none"
)

// ReadMetrics describes one cache-aside call for observability.
type ReadMetrics struct {
	Hit       bool    `json:"cache_hit"`
	Source    Source  `json:"source"`
	LatencyMs float64 `json:"latency_ms"`
}

// FetchFunc reads the resource from the system of record. Returning
// (nil, nil) means the resource does not exist, which is not an error.
type FetchFunc func(ctx context.Context, resourceID, tenantID string, h Hierarchy) (any, error)

// GenerateFunc computes the resource when neither cache nor the system
// of record has it (e.g. compute an embedding, create empty memory).
type GenerateFunc func(ctx context.Context, resourceID, tenantID string) (any, error)

// Wildcard selects every resource of a data type inside the tenant.
const Wildcard = "*"

// RelatedInvalidation names one fan-out target of a coordinated
// invalidation. ResourceID may be Wildcard.
type RelatedInvalidation struct {
	DataType   string `json:"data_type"`
	ResourceID string `json:"resource_id"`
}

// InvalidateRequest is what callers of the invalidation endpoint submit.
// The tenant comes from the request header, never from the body.
type InvalidateRequest struct {
	DataType   string                `json:"data_type"`
	ResourceID string                `json:"resource_id"`
	Related    []RelatedInvalidation `json:"related,omitempty"`
}

// Stats is the aggregate view served by the cache stats endpoint.
type Stats struct {
	Available     bool             `json:"available"`
	Hits          int64            `json:"hits"`
	Misses        int64            `json:"misses"`
	HitRate       float64          `json:"hit_rate"`
	Invalidations int64            `json:"invalidations"`
	BySource      map[Source]int64 `json:"by_source"`
}

// ICacheUsecase is the cache-aside orchestrator contract consumed by
// route handlers and the ingestion worker.
type ICacheUsecase interface {
	GetWithCacheAside(ctx context.Context, dataType, resourceID, tenantID string, fetch FetchFunc, generate GenerateFunc, h Hierarchy) (any, ReadMetrics, error)
	Set(ctx context.Context, dataType, resourceID, tenantID string, value any, h Hierarchy) error
	Invalidate(ctx context.Context, dataType, resourceID, tenantID string, h Hierarchy) (bool, error)
	InvalidateCoordinated(ctx context.Context, tenantID, primaryDataType, primaryResourceID string, related []RelatedInvalidation) map[string]int64
	GetStats(ctx context.Context) Stats
}
