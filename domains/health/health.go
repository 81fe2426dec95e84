package health

import (
	"context"
	"time"
)

type EntityType string

const (
	EntityCacheStore EntityType = "cache_store"
	EntityDatabase   EntityType = "database"
	EntityQueue      EntityType = "ingestion_queue"
)

type Status string

const (
	StatusOk      Status = "OK"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

type HealthRecord struct {
	EntityType  EntityType `json:"entity_type"`
	Status      Status     `json:"status"`
	LastMessage string     `json:"last_message"`
	LastChecked time.Time  `json:"last_checked"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

type IHealthUsecase interface {
	CheckCacheStore(ctx context.Context) HealthRecord
	CheckDatabase(ctx context.Context) HealthRecord
	CheckQueue(ctx context.Context) HealthRecord
	GetStatus(ctx context.Context) []HealthRecord
	StartPeriodicChecks(ctx context.Context)
}
