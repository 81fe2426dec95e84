package cmd

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	coreconfig "github.com/vectorhub/ragcache/core/config"
	coreDB "github.com/vectorhub/ragcache/core/database"
	domainCache "github.com/vectorhub/ragcache/domains/cache"
	domainHealth "github.com/vectorhub/ragcache/domains/health"
	domainJob "github.com/vectorhub/ragcache/domains/job"
	"github.com/vectorhub/ragcache/infrastructure/valkey"
	"github.com/vectorhub/ragcache/integrations/embedder"
	"github.com/vectorhub/ragcache/pkg/metrics"
	"github.com/vectorhub/ragcache/pkg/utils"
	"github.com/vectorhub/ragcache/repository"
	"github.com/vectorhub/ragcache/usecase"
)

var (
	appConfig *coreconfig.Config

	// Infrastructure
	vkClient *valkey.Client
	db       *gorm.DB
	recorder *metrics.Recorder

	// Repositories
	jobRepo   *repository.JobGormRepository
	chunkRepo *repository.ChunkGormRepository

	// Usecases
	cacheStore    domainCache.Store
	cacheUsecase  domainCache.ICacheUsecase
	jobUsecase    domainJob.IJobUsecase
	healthUsecase domainHealth.IHealthUsecase
	ingestSvc     *usecase.IngestService
)

// Flag overrides, applied on top of the environment config.
var (
	flagPort          string
	flagDebug         bool
	flagValkeyAddress string
	flagWorkers       int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ragcache",
	Short: "Multi-tenant RAG cache and ingestion platform",
	Long:  `Cache-aside read layer and distributed ingestion job queue for multi-tenant RAG workloads, backed by Valkey and a relational record of truth.`,
}

func init() {
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initApp)
}

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagValkeyAddress,
		"valkey-address", "",
		"",
		`valkey endpoint --valkey-address <host:port> | example: --valkey-address="localhost:6379"`,
	)
	rootCmd.PersistentFlags().IntVarP(
		&flagWorkers,
		"ingest-workers", "",
		0,
		`number of concurrent ingest workers --ingest-workers <number> | example: --ingest-workers=8`,
	)
}

func initApp() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[APP] Invalid configuration: %v", err)
	}

	if flagPort != "" {
		cfg.App.Port = flagPort
	}
	if flagDebug {
		cfg.App.Debug = true
	}
	if flagValkeyAddress != "" {
		cfg.Valkey.Address = flagValkeyAddress
	}
	if flagWorkers > 0 {
		cfg.WorkerPool.Size = flagWorkers
	}
	appConfig = cfg

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := utils.CreateFolder(cfg.Paths.Storages); err != nil {
		logrus.Errorln(err)
	}

	ctx := context.Background()

	// Record of truth
	db, err = coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[APP] Failed to open database: %v", err)
	}

	jobRepo = repository.NewJobGormRepository(db)
	if err := jobRepo.Init(ctx); err != nil {
		logrus.Fatalf("[APP] Failed to migrate job tables: %v", err)
	}
	chunkRepo = repository.NewChunkGormRepository(db)
	if err := chunkRepo.Init(ctx); err != nil {
		logrus.Fatalf("[APP] Failed to migrate chunk tables: %v", err)
	}

	// Cache store and queue. The queue lives here too, so boot requires
	// the connection even though reads degrade on later outages.
	vkClient, err = valkey.NewClient(valkey.Config{
		Address:        cfg.Valkey.Address,
		Password:       cfg.Valkey.Password,
		DB:             cfg.Valkey.DB,
		KeyPrefix:      cfg.Valkey.KeyPrefix,
		ConnectTimeout: cfg.Valkey.ConnectTimeout,
	})
	if err != nil {
		logrus.Fatalf("[APP] Failed to connect to Valkey at %s: %v", cfg.Valkey.Address, err)
	}

	recorder = metrics.NewRecorder()
	cacheStore = repository.NewValkeyStore(vkClient, cfg.Valkey.OpTimeout)
	cacheUsecase = usecase.NewCacheService(cacheStore, recorder, cfg.Cache.Enabled)

	workerID := utils.GetPersistentWorkerID(cfg.App.WorkerID, cfg.Paths.Storages)
	logrus.Infof("[APP] Worker identity: %s", workerID)

	jobUsecase = usecase.NewJobService(cacheStore, jobRepo, cacheUsecase, chunkRepo, recorder,
		cfg.Jobs.LockTTL, cfg.Jobs.MaxProcessingTime, cfg.Jobs.MaxRetries, workerID)

	var embed usecase.IEmbedder
	if cfg.APIKeys.OpenAI != "" {
		client, err := embedder.NewEmbedder(cfg.APIKeys.OpenAI, cfg.APIKeys.EmbeddingModel)
		if err != nil {
			logrus.Warnf("[APP] Embedder disabled: %v", err)
		} else {
			embed = client
		}
	} else {
		logrus.Warn("[APP] OPENAI_API_KEY not set, chunks will be stored without embeddings")
	}
	ingestSvc = usecase.NewIngestService(jobUsecase, cacheUsecase, chunkRepo, embed, cfg.Paths.Storages)

	healthUsecase = usecase.NewHealthService(cacheStore, vkClient, db)
	healthUsecase.StartPeriodicChecks(ctx)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of all connections.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if vkClient != nil {
		vkClient.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
