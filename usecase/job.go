package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domainCache "github.com/vectorhub/ragcache/domains/cache"
	domainJob "github.com/vectorhub/ragcache/domains/job"
	pkgError "github.com/vectorhub/ragcache/pkg/error"
	"github.com/vectorhub/ragcache/pkg/metrics"
)

// IChunkCleaner is what cancel cleanup needs from chunk persistence.
type IChunkCleaner interface {
	DeleteForDocument(ctx context.Context, tenantID, documentID string) error
}

type jobService struct {
	store         domainCache.Store
	repo          domainJob.IRepository
	cacheUsecase  domainCache.ICacheUsecase
	chunks        IChunkCleaner
	recorder      *metrics.Recorder
	lockTTL       time.Duration
	maxProcessing time.Duration
	maxRetries    int
	workerID      string
}

// NewJobService builds the queue/lock lifecycle service. lockTTL must
// exceed the expected worst-case processing time; the stuck-job sweep
// (driven by maxProcessing) is the safety net when it does not.
func NewJobService(store domainCache.Store, repo domainJob.IRepository, cacheUsecase domainCache.ICacheUsecase, chunks IChunkCleaner, recorder *metrics.Recorder, lockTTL, maxProcessing time.Duration, maxRetries int, workerID string) domainJob.IJobUsecase {
	return &jobService{
		store:         store,
		repo:          repo,
		cacheUsecase:  cacheUsecase,
		chunks:        chunks,
		recorder:      recorder,
		lockTTL:       lockTTL,
		maxProcessing: maxProcessing,
		maxRetries:    maxRetries,
		workerID:      workerID,
	}
}

// Enqueue persists the job row first (the record of truth), then pushes
// the dispatch envelope. A failed push leaves the row pending and
// returns the error so the caller can resubmit.
func (s *jobService) Enqueue(ctx context.Context, req domainJob.EnqueueRequest) (string, error) {
	if req.TenantID == "" {
		return "", pkgError.ValidationError("tenant_id is required")
	}
	switch req.SourceType {
	case domainJob.SourceFile, domainJob.SourceURL, domainJob.SourceText:
	default:
		return "", pkgError.ValidationError("source_type must be file, url or text")
	}

	now := time.Now().UTC()
	j := &domainJob.ProcessingJob{
		ID:           uuid.NewString(),
		TenantID:     req.TenantID,
		DocumentID:   req.DocumentID,
		CollectionID: req.CollectionID,
		SourceType:   req.SourceType,
		FileKey:      req.FileKey,
		URL:          req.URL,
		TextContent:  req.TextContent,
		Metadata:     req.Metadata,
		Status:       domainJob.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, j); err != nil {
		return "", err
	}

	if err := s.pushEnvelope(ctx, j.ID, j.TenantID); err != nil {
		logrus.WithError(err).Errorf("[JOBS] Enqueue push failed for job %s", j.ID)
		if errors.Is(err, domainCache.ErrUnavailable) {
			return "", pkgError.CacheUnavailableError("ingestion queue unavailable, submit again later")
		}
		return "", err
	}

	if s.recorder != nil {
		s.recorder.TrackJobEvent("enqueued")
	}
	return j.ID, nil
}

func (s *jobService) pushEnvelope(ctx context.Context, jobID, tenantID string) error {
	envelope, err := json.Marshal(domainJob.QueueEnvelope{JobID: jobID, TenantID: tenantID})
	if err != nil {
		return err
	}
	return s.store.ListPush(ctx, domainJob.QueueKey, envelope)
}

// DequeueAndLock blocking-pops the dispatch list and races for the
// job's lock. Losing the race means another worker owns the job: the
// call reports "nothing to do", it does not error and does not
// re-queue.
func (s *jobService) DequeueAndLock(ctx context.Context, timeout time.Duration) (*domainJob.ProcessingJob, error) {
	data, err := s.store.ListPopBlocking(ctx, domainJob.QueueKey, timeout)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var envelope domainJob.QueueEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		logrus.WithError(err).Error("[JOBS] Dropping malformed queue envelope")
		return nil, nil
	}

	acquired, err := s.store.SetIfAbsent(ctx, domainJob.LockKeyFor(envelope.JobID), []byte(s.workerID), s.lockTTL)
	if err != nil {
		logrus.WithError(err).Errorf("[JOBS] Lock acquisition failed for job %s", envelope.JobID)
		return nil, err
	}
	if !acquired {
		// Another worker already holds the lock; the job is theirs.
		logrus.Debugf("[JOBS] Job %s already locked, skipping", envelope.JobID)
		return nil, nil
	}

	j, err := s.repo.GetByID(ctx, envelope.JobID)
	if err != nil {
		s.ReleaseLock(ctx, envelope.JobID)
		logrus.WithError(err).Errorf("[JOBS] Popped job %s has no row", envelope.JobID)
		return nil, nil
	}
	if j.Status == domainJob.StatusCancelled {
		s.ReleaseLock(ctx, envelope.JobID)
		return nil, nil
	}

	if err := s.repo.UpdateStatus(ctx, j.ID, domainJob.StatusProcessing, ""); err != nil {
		s.ReleaseLock(ctx, j.ID)
		return nil, err
	}
	j.Status = domainJob.StatusProcessing

	s.invalidateStatusView(ctx, j.ID, j.TenantID)
	if s.recorder != nil {
		s.recorder.TrackJobEvent("locked")
	}
	return j, nil
}

// Complete transitions to completed unless a cooperative cancel arrived
// while the worker was busy.
func (s *jobService) Complete(ctx context.Context, jobID string) error {
	j, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status == domainJob.StatusCancelled {
		logrus.Infof("[JOBS] Job %s was cancelled mid-flight, keeping cancelled state", jobID)
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, jobID, domainJob.StatusCompleted, ""); err != nil {
		return err
	}
	s.invalidateStatusView(ctx, jobID, j.TenantID)
	if s.recorder != nil {
		s.recorder.TrackJobEvent("completed")
	}
	return nil
}

// Fail reports the job failed in the system of record. This is the
// last, most important step of a failed run and is attempted even when
// cache cleanup has already gone wrong.
func (s *jobService) Fail(ctx context.Context, jobID, errMsg string) error {
	if err := s.repo.UpdateStatus(ctx, jobID, domainJob.StatusFailed, errMsg); err != nil {
		return err
	}
	if j, err := s.repo.GetByID(ctx, jobID); err == nil {
		s.invalidateStatusView(ctx, jobID, j.TenantID)
	}
	if s.recorder != nil {
		s.recorder.TrackJobEvent("failed")
	}
	return nil
}

// ReleaseLock removes the job's mutual-exclusion key. A failed release
// is logged loudly but never propagated: the worker must still be able
// to report the job outcome.
func (s *jobService) ReleaseLock(ctx context.Context, jobID string) {
	if _, err := s.store.Delete(ctx, domainJob.LockKeyFor(jobID)); err != nil {
		logrus.WithError(err).Errorf("[JOBS] LOCK LEAK: failed to release lock for job %s (TTL %s will reclaim)", jobID, s.lockTTL)
	}
}

// RetryFailedJob is permitted only from failed state: the job resets to
// pending, its retry counter increments, and a fresh envelope is pushed.
func (s *jobService) RetryFailedJob(ctx context.Context, jobID, tenantID string) error {
	j, err := s.repo.GetByIDForTenant(ctx, jobID, tenantID)
	if err != nil {
		return err
	}
	if j.Status != domainJob.StatusFailed {
		return pkgError.InvalidStateError("only failed jobs can be retried (current: " + string(j.Status) + ")")
	}
	if s.maxRetries > 0 && j.RetryCount >= s.maxRetries {
		return pkgError.InvalidStateError("retry limit reached")
	}

	if err := s.repo.IncrementRetry(ctx, jobID); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, jobID, domainJob.StatusPending, ""); err != nil {
		return err
	}
	if err := s.pushEnvelope(ctx, jobID, tenantID); err != nil {
		// A pending row with no envelope would never run again, so put
		// the job back where another retry can reach it.
		logrus.WithError(err).Errorf("[JOBS] Retry push failed for job %s, reverting to failed", jobID)
		if revertErr := s.repo.UpdateStatus(ctx, jobID, domainJob.StatusFailed, j.Error); revertErr != nil {
			logrus.WithError(revertErr).Errorf("[JOBS] Could not revert job %s after failed retry push", jobID)
		}
		s.invalidateStatusView(ctx, jobID, tenantID)
		if errors.Is(err, domainCache.ErrUnavailable) {
			return pkgError.CacheUnavailableError("ingestion queue unavailable, retry again later")
		}
		return err
	}

	s.invalidateStatusView(ctx, jobID, tenantID)
	if s.recorder != nil {
		s.recorder.TrackJobEvent("retried")
	}
	return nil
}

// CancelJob is permitted only from non-terminal states. Cancellation is
// cooperative: an in-flight worker keeps running until its next stage
// boundary, where it observes the cancelled status.
func (s *jobService) CancelJob(ctx context.Context, jobID, tenantID string) error {
	j, err := s.repo.GetByIDForTenant(ctx, jobID, tenantID)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return pkgError.InvalidStateError("job is already " + string(j.Status))
	}

	if err := s.repo.UpdateStatus(ctx, jobID, domainJob.StatusCancelled, "cancelled by caller"); err != nil {
		return err
	}

	// Best-effort cleanup of job-scoped cache entries and any chunks a
	// half-finished run already wrote; the row update above already
	// committed.
	s.invalidateStatusView(ctx, jobID, tenantID)
	if s.cacheUsecase != nil {
		if _, err := s.cacheUsecase.Invalidate(ctx, "workflow_state", jobID, tenantID, domainCache.Hierarchy{}); err != nil {
			logrus.WithError(err).Warnf("[JOBS] Cancel cleanup failed for job %s", jobID)
		}
	}
	if s.chunks != nil && j.DocumentID != "" {
		if err := s.chunks.DeleteForDocument(ctx, tenantID, j.DocumentID); err != nil {
			logrus.WithError(err).Warnf("[JOBS] Chunk cleanup failed for cancelled job %s", jobID)
		}
	}

	if s.recorder != nil {
		s.recorder.TrackJobEvent("cancelled")
	}
	return nil
}

// CheckStuckJobs sweeps processing jobs whose updated_at is older than
// the max processing window and whose lock has lapsed, marking them
// failed. Detection is the recovery action; nothing is raised.
func (s *jobService) CheckStuckJobs(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.maxProcessing)
	stale, err := s.repo.ListProcessingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, j := range stale {
		lockKey := domainJob.LockKeyFor(j.ID)
		held, err := s.store.Exists(ctx, lockKey)
		if err != nil {
			logrus.WithError(err).Warnf("[SWEEP] Cannot inspect lock for job %s, skipping", j.ID)
			continue
		}
		if held {
			// A live lock means a worker still owns it; the lock TTL
			// arbitrates, not the sweep.
			continue
		}

		msg := "processing timeout exceeded (max " + s.maxProcessing.String() + ", no active lock)"
		if err := s.repo.UpdateStatus(ctx, j.ID, domainJob.StatusFailed, msg); err != nil {
			logrus.WithError(err).Errorf("[SWEEP] Failed to mark job %s as failed", j.ID)
			continue
		}
		// Force-release any residual lock that appeared between the
		// check and the transition.
		s.ReleaseLock(ctx, j.ID)
		s.invalidateStatusView(ctx, j.ID, j.TenantID)

		logrus.Warnf("[SWEEP] Job %s marked failed: %s", j.ID, msg)
		if s.recorder != nil {
			s.recorder.TrackJobEvent("swept")
		}
		swept++
	}
	return swept, nil
}

// GetJobStatus serves the polling endpoint through the cache-aside
// path; the row fetch is the source of record.
func (s *jobService) GetJobStatus(ctx context.Context, jobID, tenantID string) (*domainJob.StatusInfo, error) {
	fetch := func(ctx context.Context, resourceID, tenant string, _ domainCache.Hierarchy) (any, error) {
		j, err := s.repo.GetByIDForTenant(ctx, resourceID, tenant)
		if err != nil {
			var notFound pkgError.NotFoundError
			if errors.As(err, &notFound) {
				return nil, nil
			}
			return nil, err
		}
		return domainJob.StatusInfo{
			JobID:    j.ID,
			Status:   j.Status,
			Progress: j.Progress,
			Error:    j.Error,
		}, nil
	}

	value, _, err := s.cacheUsecase.GetWithCacheAside(ctx, "job_status", jobID, tenantID, fetch, nil, domainCache.Hierarchy{})
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, pkgError.NotFoundError("job not found")
	}

	// The cache round trip may hand back a decoded JSON map; normalize
	// through JSON into the typed view.
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var info domainJob.StatusInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// UpdateProgress bumps progress (and updated_at, which keeps the sweep
// away) and drops the cached status view.
func (s *jobService) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if err := s.repo.UpdateProgress(ctx, jobID, progress); err != nil {
		return err
	}
	if j, err := s.repo.GetByID(ctx, jobID); err == nil {
		s.invalidateStatusView(ctx, jobID, j.TenantID)
	}
	return nil
}

// IsCancelled is the worker's stage-boundary cancellation check.
func (s *jobService) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	j, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	return j.Status == domainJob.StatusCancelled, nil
}

func (s *jobService) invalidateStatusView(ctx context.Context, jobID, tenantID string) {
	if s.cacheUsecase == nil {
		return
	}
	if _, err := s.cacheUsecase.Invalidate(ctx, "job_status", jobID, tenantID, domainCache.Hierarchy{}); err != nil {
		logrus.WithError(err).Debugf("[JOBS] Status view invalidation failed for job %s", jobID)
	}
}
