package ingestworker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	domainJob "github.com/vectorhub/ragcache/domains/job"
)

// ProcessFunc runs one locked job through the ingestion pipeline.
type ProcessFunc func(ctx context.Context, j *domainJob.ProcessingJob) error

// PoolStats contains real-time worker pool metrics.
type PoolStats struct {
	NumWorkers     int           `json:"num_workers"`
	ActiveWorkers  int           `json:"active_workers"`
	TotalProcessed int64         `json:"total_processed"`
	TotalFailed    int64         `json:"total_failed"`
	TotalSkipped   int64         `json:"total_skipped"`
	WorkerStats    []WorkerStats `json:"worker_stats"`
}

// WorkerStats contains per-worker metrics.
type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// Pool runs N concurrent dequeue loops against the shared job queue.
// Mutual exclusion between loops (and between processes) comes from the
// job lock, not from the pool.
type Pool struct {
	numWorkers     int
	jobs           domainJob.IJobUsecase
	process        ProcessFunc
	dequeueTimeout time.Duration

	workers  []*worker
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  int32
	stopCh   chan struct{}

	totalProcessed int64
	totalFailed    int64
	totalSkipped   int64
	startTime      time.Time
}

type worker struct {
	id            int
	isProcessing  int32 // atomic: 1 if processing, 0 if idle
	jobsProcessed int64 // atomic counter
	pool          *Pool
}

// NewPool creates a new ingestion worker pool.
func NewPool(numWorkers int, jobs domainJob.IJobUsecase, process ProcessFunc, dequeueTimeout time.Duration) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}

	return &Pool{
		numWorkers:     numWorkers,
		jobs:           jobs,
		process:        process,
		dequeueTimeout: dequeueTimeout,
		workers:        make([]*worker, numWorkers),
		stopCh:         make(chan struct{}),
		startTime:      time.Now(),
	}
}

// Start launches all dequeue loops.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		w := &worker{id: i, pool: p}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(ctx, &p.wg)
	}

	logrus.Infof("[INGEST_POOL] Started with %d workers, dequeue timeout %s", p.numWorkers, p.dequeueTimeout)
}

// Stop drains the pool gracefully. In-flight jobs finish their current
// run; nothing new is popped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		close(p.stopCh)
		logrus.Info("[INGEST_POOL] Stopping workers...")
		p.wg.Wait()
		logrus.Info("[INGEST_POOL] All workers stopped")
	})
}

// GetStats returns a snapshot of pool activity.
func (p *Pool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, len(p.workers))
	activeWorkers := 0

	for i, w := range p.workers {
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}
		workerStats[i] = WorkerStats{
			WorkerID:      w.id,
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		}
	}

	return PoolStats{
		NumWorkers:     p.numWorkers,
		ActiveWorkers:  activeWorkers,
		TotalProcessed: atomic.LoadInt64(&p.totalProcessed),
		TotalFailed:    atomic.LoadInt64(&p.totalFailed),
		TotalSkipped:   atomic.LoadInt64(&p.totalSkipped),
		WorkerStats:    workerStats,
	}
}

func (w *worker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.pool.stopCh:
			return
		default:
		}

		j, err := w.pool.jobs.DequeueAndLock(ctx, w.pool.dequeueTimeout)
		if err != nil {
			logrus.WithError(err).Warnf("[INGEST_POOL] Worker %d dequeue failed, backing off", w.id)
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return
			case <-w.pool.stopCh:
				return
			}
			continue
		}
		if j == nil {
			// Empty poll window or another worker owns the job.
			atomic.AddInt64(&w.pool.totalSkipped, 1)
			continue
		}

		w.handle(ctx, j)
	}
}

// handle runs one job. The lock release lives in a defer so it survives
// processing errors and panics alike; leaking a lock on exception is a
// correctness bug, not an acceptable failure mode.
func (w *worker) handle(ctx context.Context, j *domainJob.ProcessingJob) {
	atomic.StoreInt32(&w.isProcessing, 1)
	defer atomic.StoreInt32(&w.isProcessing, 0)
	defer w.pool.jobs.ReleaseLock(ctx, j.ID)

	var processErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				processErr = fmt.Errorf("panic during processing: %v", r)
			}
		}()
		processErr = w.pool.process(ctx, j)
	}()

	if processErr != nil {
		atomic.AddInt64(&w.pool.totalFailed, 1)
		logrus.WithError(processErr).Errorf("[INGEST_POOL] Worker %d failed job %s", w.id, j.ID)
		// Reporting the failure to the system of record is the last,
		// most important step; attempted even if cache cleanup failed.
		if err := w.pool.jobs.Fail(ctx, j.ID, processErr.Error()); err != nil {
			logrus.WithError(err).Errorf("[INGEST_POOL] Could not record failure for job %s", j.ID)
		}
		return
	}

	if err := w.pool.jobs.Complete(ctx, j.ID); err != nil {
		logrus.WithError(err).Errorf("[INGEST_POOL] Could not record completion for job %s", j.ID)
		return
	}

	atomic.AddInt64(&w.pool.totalProcessed, 1)
	atomic.AddInt64(&w.jobsProcessed, 1)
}
