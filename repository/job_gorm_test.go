package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/vectorhub/ragcache/domains/job"
	pkgError "github.com/vectorhub/ragcache/pkg/error"
)

func setupJobRepo(t *testing.T) *JobGormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewJobGormRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func sampleJob(id, tenantID string) *job.ProcessingJob {
	now := time.Now().UTC()
	return &job.ProcessingJob{
		ID:           id,
		TenantID:     tenantID,
		DocumentID:   "doc-1",
		CollectionID: "col-1",
		SourceType:   job.SourceText,
		TextContent:  "content",
		Metadata:     map[string]string{"origin": "test"},
		Status:       job.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestJobGormRepository_CreateAndGet(t *testing.T) {
	repo := setupJobRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleJob("j-1", "tenant-a")))

	got, err := repo.GetByID(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", got.TenantID)
	assert.Equal(t, job.StatusPending, got.Status)
	assert.Equal(t, "test", got.Metadata["origin"])
}

func TestJobGormRepository_GetMissing(t *testing.T) {
	repo := setupJobRepo(t)

	_, err := repo.GetByID(context.Background(), "nope")
	var notFound pkgError.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestJobGormRepository_TenantScoping(t *testing.T) {
	repo := setupJobRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleJob("j-1", "tenant-a")))

	_, err := repo.GetByIDForTenant(ctx, "j-1", "tenant-a")
	require.NoError(t, err)

	_, err = repo.GetByIDForTenant(ctx, "j-1", "tenant-b")
	var notFound pkgError.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestJobGormRepository_UpdateStatusAndProgress(t *testing.T) {
	repo := setupJobRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleJob("j-1", "tenant-a")))

	require.NoError(t, repo.UpdateStatus(ctx, "j-1", job.StatusFailed, "boom"))
	got, err := repo.GetByID(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	require.NoError(t, repo.UpdateProgress(ctx, "j-1", 40))
	got, err = repo.GetByID(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)
}

func TestJobGormRepository_IncrementRetry(t *testing.T) {
	repo := setupJobRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleJob("j-1", "tenant-a")))
	require.NoError(t, repo.IncrementRetry(ctx, "j-1"))
	require.NoError(t, repo.IncrementRetry(ctx, "j-1"))

	got, err := repo.GetByID(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.RetryCount)
}

func TestJobGormRepository_ListProcessingOlderThan(t *testing.T) {
	repo := setupJobRepo(t)
	ctx := context.Background()

	stale := sampleJob("j-stale", "tenant-a")
	stale.Status = job.StatusProcessing
	stale.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, stale))

	fresh := sampleJob("j-fresh", "tenant-a")
	fresh.Status = job.StatusProcessing
	require.NoError(t, repo.Create(ctx, fresh))

	pendingOld := sampleJob("j-pending", "tenant-a")
	pendingOld.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, pendingOld))

	found, err := repo.ListProcessingOlderThan(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "j-stale", found[0].ID)
}
