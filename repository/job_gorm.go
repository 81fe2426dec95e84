package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vectorhub/ragcache/domains/job"
	pkgError "github.com/vectorhub/ragcache/pkg/error"
)

// jobModel is the GORM persistence model. The domain struct stays free
// of persistence tags.
type jobModel struct {
	ID           string `gorm:"primaryKey"`
	TenantID     string `gorm:"index;not null"`
	DocumentID   string `gorm:"index"`
	CollectionID string `gorm:"index"`
	SourceType   string `gorm:"not null"`
	FileKey      string
	URL          string
	TextContent  string
	Metadata     string    // JSON blob
	Status       string    `gorm:"index;not null;default:pending"`
	Progress     int       `gorm:"not null;default:0"`
	RetryCount   int       `gorm:"not null;default:0"`
	Error        string
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (jobModel) TableName() string {
	return "processing_jobs"
}

func toJobModel(j *job.ProcessingJob) jobModel {
	meta := ""
	if len(j.Metadata) > 0 {
		if data, err := json.Marshal(j.Metadata); err == nil {
			meta = string(data)
		}
	}
	return jobModel{
		ID:           j.ID,
		TenantID:     j.TenantID,
		DocumentID:   j.DocumentID,
		CollectionID: j.CollectionID,
		SourceType:   string(j.SourceType),
		FileKey:      j.FileKey,
		URL:          j.URL,
		TextContent:  j.TextContent,
		Metadata:     meta,
		Status:       string(j.Status),
		Progress:     j.Progress,
		RetryCount:   j.RetryCount,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

func fromJobModel(m jobModel) *job.ProcessingJob {
	var meta map[string]string
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
	}
	return &job.ProcessingJob{
		ID:           m.ID,
		TenantID:     m.TenantID,
		DocumentID:   m.DocumentID,
		CollectionID: m.CollectionID,
		SourceType:   job.SourceType(m.SourceType),
		FileKey:      m.FileKey,
		URL:          m.URL,
		TextContent:  m.TextContent,
		Metadata:     meta,
		Status:       job.Status(m.Status),
		Progress:     m.Progress,
		RetryCount:   m.RetryCount,
		Error:        m.Error,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// JobGormRepository implements job.IRepository using GORM.
type JobGormRepository struct {
	db *gorm.DB
}

func NewJobGormRepository(db *gorm.DB) *JobGormRepository {
	return &JobGormRepository{db: db}
}

// Init initializes the schema using AutoMigrate.
func (r *JobGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&jobModel{})
}

func (r *JobGormRepository) Create(ctx context.Context, j *job.ProcessingJob) error {
	model := toJobModel(j)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *JobGormRepository) GetByID(ctx context.Context, jobID string) (*job.ProcessingJob, error) {
	var model jobModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgError.NotFoundError("job not found")
		}
		return nil, err
	}
	return fromJobModel(model), nil
}

// GetByIDForTenant enforces tenant scoping at the row level so one
// tenant cannot poll another tenant's jobs.
func (r *JobGormRepository) GetByIDForTenant(ctx context.Context, jobID, tenantID string) (*job.ProcessingJob, error) {
	var model jobModel
	err := r.db.WithContext(ctx).First(&model, "id = ? AND tenant_id = ?", jobID, tenantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgError.NotFoundError("job not found")
		}
		return nil, err
	}
	return fromJobModel(model), nil
}

func (r *JobGormRepository) UpdateStatus(ctx context.Context, jobID string, status job.Status, errMsg string) error {
	updates := map[string]any{
		"status":     string(status),
		"error":      errMsg,
		"updated_at": time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Model(&jobModel{}).Where("id = ?", jobID).Updates(updates).Error
}

func (r *JobGormRepository) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	updates := map[string]any{
		"progress":   progress,
		"updated_at": time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Model(&jobModel{}).Where("id = ?", jobID).Updates(updates).Error
}

func (r *JobGormRepository) IncrementRetry(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Model(&jobModel{}).Where("id = ?", jobID).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
}

// ListProcessingOlderThan returns processing jobs whose updated_at is
// before the cutoff; the stuck-job sweep decides what to do with them.
func (r *JobGormRepository) ListProcessingOlderThan(ctx context.Context, cutoff time.Time) ([]*job.ProcessingJob, error) {
	var models []jobModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(job.StatusProcessing), cutoff).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	result := make([]*job.ProcessingJob, len(models))
	for i, m := range models {
		result[i] = fromJobModel(m)
	}
	return result, nil
}
