package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	domainCache "github.com/vectorhub/ragcache/domains/cache"
	"github.com/vectorhub/ragcache/pkg/metrics"
)

type cacheService struct {
	store    domainCache.Store
	recorder *metrics.Recorder
	enabled  bool
}

// NewCacheService builds the cache-aside orchestrator. With enabled
// false every read degrades straight to the system of record.
func NewCacheService(store domainCache.Store, recorder *metrics.Recorder, enabled bool) domainCache.ICacheUsecase {
	return &cacheService{store: store, recorder: recorder, enabled: enabled}
}

// GetWithCacheAside is the three-tier read path: cache, then the
// caller's fetch, then the caller's generate. Exactly one tier produces
// the value; population only happens with a value confirmed in the same
// call. A broken cache store is treated as a miss, never as an error.
//
// Concurrent misses on the same key are not collapsed: every caller
// falls through to fetch/generate independently. Callers with expensive
// generators should serialize at their own level.
func (s *cacheService) GetWithCacheAside(ctx context.Context, dataType, resourceID, tenantID string, fetch domainCache.FetchFunc, generate domainCache.GenerateFunc, h domainCache.Hierarchy) (any, domainCache.ReadMetrics, error) {
	started := time.Now()

	key, err := domainCache.BuildKey(dataType, resourceID, tenantID, h)
	if err != nil {
		return nil, domainCache.ReadMetrics{Source: domainCache.SourceNone}, err
	}

	// Tier 1: cache.
	if s.enabled {
		data, err := s.store.Get(ctx, key)
		if err != nil {
			logrus.WithError(err).Warnf("[CACHE] Read degraded to miss for %s", key)
		} else if data != nil {
			var value any
			if err := json.Unmarshal(data, &value); err != nil {
				logrus.WithError(err).Warnf("[CACHE] Corrupt entry dropped for %s", key)
				_, _ = s.store.Delete(ctx, key)
			} else {
				m := s.finish(tenantID, dataType, domainCache.SourceCache, true, started)
				return value, m, nil
			}
		}
	}

	// Tier 2: system of record.
	if fetch != nil {
		value, err := fetch(ctx, resourceID, tenantID, h)
		if err != nil {
			return nil, s.finish(tenantID, dataType, domainCache.SourceNone, false, started), err
		}
		if value != nil {
			s.populate(ctx, key, dataType, value)
			m := s.finish(tenantID, dataType, domainCache.SourceDatabase, false, started)
			return value, m, nil
		}
	}

	// Tier 3: generation.
	if generate != nil {
		value, err := generate(ctx, resourceID, tenantID)
		if err != nil {
			return nil, s.finish(tenantID, dataType, domainCache.SourceNone, false, started), err
		}
		if value != nil {
			s.populate(ctx, key, dataType, value)
			m := s.finish(tenantID, dataType, domainCache.SourceGeneration, false, started)
			return value, m, nil
		}
	}

	// Absence of the resource is a valid outcome, not an error; the
	// caller decides whether it maps to a not-found.
	return nil, s.finish(tenantID, dataType, domainCache.SourceNone, false, started), nil
}

func (s *cacheService) finish(tenantID, dataType string, source domainCache.Source, hit bool, started time.Time) domainCache.ReadMetrics {
	m := domainCache.ReadMetrics{
		Hit:       hit,
		Source:    source,
		LatencyMs: float64(time.Since(started).Microseconds()) / 1000.0,
	}
	if s.recorder != nil {
		s.recorder.TrackCacheRead(tenantID, dataType, string(source), hit, m.LatencyMs)
	}
	return m
}

// populate writes a freshly confirmed value back. Failures only log;
// the caller already has the value.
func (s *cacheService) populate(ctx context.Context, key, dataType string, value any) {
	if !s.enabled {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		logrus.WithError(err).Warnf("[CACHE] Skipping populate of unmarshalable value for %s", key)
		return
	}
	ttl := domainCache.ResolveTTL(dataType).Duration()
	if err := s.store.Set(ctx, key, data, ttl); err != nil {
		logrus.WithError(err).Warnf("[CACHE] Populate failed for %s", key)
	}
}

// Set stores a value directly with the TTL dictated by its data type.
func (s *cacheService) Set(ctx context.Context, dataType, resourceID, tenantID string, value any, h domainCache.Hierarchy) error {
	key, err := domainCache.BuildKey(dataType, resourceID, tenantID, h)
	if err != nil {
		return err
	}
	if !s.enabled {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, data, domainCache.ResolveTTL(dataType).Duration())
}

// Invalidate removes one exact key. Removing an absent key returns
// (false, nil), not an error.
func (s *cacheService) Invalidate(ctx context.Context, dataType, resourceID, tenantID string, h domainCache.Hierarchy) (bool, error) {
	key, err := domainCache.BuildKey(dataType, resourceID, tenantID, h)
	if err != nil {
		return false, err
	}
	if !s.enabled {
		return false, nil
	}
	return s.store.Delete(ctx, key)
}

// InvalidateCoordinated deletes the primary key and fans out over the
// declared related resources, wildcards expanding to a tenant-scoped
// prefix delete. Store failures are swallowed: invalidation is a
// best-effort optimization and must never block the write that
// triggered it.
func (s *cacheService) InvalidateCoordinated(ctx context.Context, tenantID, primaryDataType, primaryResourceID string, related []domainCache.RelatedInvalidation) map[string]int64 {
	counts := make(map[string]int64)
	if !s.enabled {
		return counts
	}

	primaryKey, err := domainCache.BuildKey(primaryDataType, primaryResourceID, tenantID, domainCache.Hierarchy{})
	if err != nil {
		logrus.WithError(err).Warn("[CACHE] Coordinated invalidation skipped: bad primary key")
		return counts
	}
	counts[primaryDataType] = 0
	if removed, err := s.store.Delete(ctx, primaryKey); err != nil {
		s.logInvalidationFailure(primaryKey, err)
	} else if removed {
		counts[primaryDataType]++
	}

	for _, rel := range related {
		if _, ok := counts[rel.DataType]; !ok {
			counts[rel.DataType] = 0
		}
		if rel.ResourceID == domainCache.Wildcard {
			// The tenant segment leads the prefix, so a wildcard can
			// never reach another tenant's keys.
			prefix := domainCache.TenantTypePrefix(tenantID, rel.DataType)
			removed, err := s.store.DeletePattern(ctx, prefix)
			if err != nil {
				s.logInvalidationFailure(prefix+"*", err)
				continue
			}
			counts[rel.DataType] += removed
			continue
		}

		key, err := domainCache.BuildKey(rel.DataType, rel.ResourceID, tenantID, domainCache.Hierarchy{})
		if err != nil {
			logrus.WithError(err).Warnf("[CACHE] Skipping related invalidation %s/%s", rel.DataType, rel.ResourceID)
			continue
		}
		removed, err := s.store.Delete(ctx, key)
		if err != nil {
			s.logInvalidationFailure(key, err)
			continue
		}
		if removed {
			counts[rel.DataType]++
		}
	}

	if s.recorder != nil {
		for dataType, count := range counts {
			s.recorder.TrackInvalidation(tenantID, dataType, count)
		}
	}
	return counts
}

func (s *cacheService) logInvalidationFailure(key string, err error) {
	if errors.Is(err, domainCache.ErrUnavailable) {
		logrus.WithError(err).Warnf("[CACHE] Invalidation no-op, store unavailable: %s", key)
		return
	}
	logrus.WithError(err).Warnf("[CACHE] Invalidation failed for %s", key)
}

// GetStats feeds the cache stats endpoint.
func (s *cacheService) GetStats(ctx context.Context) domainCache.Stats {
	hits, misses, invalidations, bySourceRaw := int64(0), int64(0), int64(0), map[string]int64{}
	if s.recorder != nil {
		hits, misses, invalidations, bySourceRaw = s.recorder.Snapshot()
	}

	bySource := make(map[domainCache.Source]int64, len(bySourceRaw))
	for k, v := range bySourceRaw {
		bySource[domainCache.Source(k)] = v
	}

	stats := domainCache.Stats{
		Hits:          hits,
		Misses:        misses,
		Invalidations: invalidations,
		BySource:      bySource,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	if s.enabled {
		stats.Available = s.store.Ping(ctx) == nil
	}
	return stats
}
