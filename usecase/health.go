package usecase

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	domainCache "github.com/vectorhub/ragcache/domains/cache"
	"github.com/vectorhub/ragcache/domains/health"
	domainJob "github.com/vectorhub/ragcache/domains/job"
	"github.com/vectorhub/ragcache/infrastructure/valkey"
)

type healthService struct {
	store        domainCache.Store
	valkeyClient *valkey.Client
	db           *gorm.DB

	mu   sync.RWMutex
	last map[health.EntityType]health.HealthRecord
}

func NewHealthService(store domainCache.Store, valkeyClient *valkey.Client, db *gorm.DB) health.IHealthUsecase {
	return &healthService{
		store:        store,
		valkeyClient: valkeyClient,
		db:           db,
		last:         make(map[health.EntityType]health.HealthRecord),
	}
}

// CheckCacheStore does a full sentinel set/get round trip, not just a
// ping, so a half-broken store shows up as ERROR.
func (s *healthService) CheckCacheStore(ctx context.Context) health.HealthRecord {
	record := health.HealthRecord{
		EntityType:  health.EntityCacheStore,
		Status:      health.StatusOk,
		LastMessage: "probe ok",
		LastChecked: time.Now().UTC(),
	}
	if err := s.valkeyClient.Probe(ctx); err != nil {
		record.Status = health.StatusError
		record.LastMessage = err.Error()
	}
	s.remember(record)
	return record
}

func (s *healthService) CheckDatabase(ctx context.Context) health.HealthRecord {
	record := health.HealthRecord{
		EntityType:  health.EntityDatabase,
		Status:      health.StatusOk,
		LastMessage: "ping ok",
		LastChecked: time.Now().UTC(),
	}

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		record.Status = health.StatusError
		record.LastMessage = err.Error()
	}
	s.remember(record)
	return record
}

func (s *healthService) CheckQueue(ctx context.Context) health.HealthRecord {
	record := health.HealthRecord{
		EntityType:  health.EntityQueue,
		Status:      health.StatusOk,
		LastChecked: time.Now().UTC(),
	}

	pending, err := s.store.ListRange(ctx, domainJob.QueueKey, 0, -1)
	if err != nil {
		record.Status = health.StatusError
		record.LastMessage = err.Error()
	} else {
		record.LastMessage = "queue depth: " + strconv.Itoa(len(pending))
	}
	s.remember(record)
	return record
}

func (s *healthService) GetStatus(ctx context.Context) []health.HealthRecord {
	s.mu.RLock()
	cached := make([]health.HealthRecord, 0, len(s.last))
	for _, r := range s.last {
		cached = append(cached, r)
	}
	s.mu.RUnlock()

	if len(cached) > 0 {
		return cached
	}

	// First call before the periodic loop has run: probe inline.
	return []health.HealthRecord{
		s.CheckCacheStore(ctx),
		s.CheckDatabase(ctx),
		s.CheckQueue(ctx),
	}
}

// StartPeriodicChecks runs the probe set every minute until ctx ends.
func (s *healthService) StartPeriodicChecks(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				s.CheckCacheStore(checkCtx)
				s.CheckDatabase(checkCtx)
				s.CheckQueue(checkCtx)
				cancel()
			}
		}
	}()
	logrus.Info("[HEALTH] Periodic checks started")
}

func (s *healthService) remember(record health.HealthRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.Status == health.StatusOk {
		now := record.LastChecked
		record.LastSuccess = &now
	} else if prev, ok := s.last[record.EntityType]; ok {
		record.LastSuccess = prev.LastSuccess
	}
	s.last[record.EntityType] = record
}
