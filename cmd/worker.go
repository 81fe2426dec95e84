package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vectorhub/ragcache/pkg/ingestworker"
	"github.com/vectorhub/ragcache/pkg/metrics"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the ingestion worker pool",
	Long:  `Runs dequeue loops against the shared ingestion queue. Safe to run on several hosts at once, the per-job lock keeps processing exclusive.`,
	Run:   workerServer,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// startIngestPool wires and starts the pool plus the stuck-job sweeper.
// The returned stop function blocks until in-flight jobs finish.
func startIngestPool(ctx context.Context) (*ingestworker.Pool, func()) {
	pool := ingestworker.NewPool(appConfig.WorkerPool.Size, jobUsecase, ingestSvc.Process, appConfig.Jobs.DequeueTimeout)
	pool.Start(ctx)

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(appConfig.Jobs.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				swept, err := jobUsecase.CheckStuckJobs(sweepCtx)
				if err != nil {
					logrus.WithError(err).Error("[SWEEP] Stuck-job sweep failed")
					continue
				}
				if swept > 0 {
					logrus.Warnf("[SWEEP] Marked %d stuck jobs as failed", swept)
				}
			}
		}
	}()

	stop := func() {
		cancelSweep()
		pool.Stop()
	}
	return pool, stop
}

func workerServer(_ *cobra.Command, _ []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, stopPool := startIngestPool(ctx)

	var metricsServer *metrics.Server
	if appConfig.Metrics.Enabled {
		metricsServer = metrics.NewServer(appConfig.Metrics.Address, recorder)
		metricsServer.Start()
	}

	logrus.Infof("[WORKER] Pool of %d workers running, sweep every %s",
		appConfig.WorkerPool.Size, appConfig.Jobs.SweepInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logrus.Info("[WORKER] Termination signal received, draining...")
	stopPool()
	if metricsServer != nil {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
		metricsServer.Stop(stopCtx)
		cancelStop()
	}
	StopApp()
}
