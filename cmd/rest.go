package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vectorhub/ragcache/pkg/ingestworker"
	"github.com/vectorhub/ragcache/pkg/metrics"
	"github.com/vectorhub/ragcache/ui/rest"
	"github.com/vectorhub/ragcache/ui/rest/middleware"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the cache and ingestion API over http",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("basic-auth", "", "Basic auth for API (format: user:pass,user2:pass2)")
	restCmd.Flags().Bool("with-workers", false, "Also run the ingestion worker pool in this process")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		appConfig.App.BasicAuth = strings.Split(baFlag, ",")
	}

	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		Network:                 "tcp",
		AppName:                 "RagCache Platform",
		DisableStartupMessage:   false,
		ServerHeader:            "Hidden",
	}

	if len(appConfig.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = appConfig.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())

	origins := strings.Join(appConfig.App.CorsAllowedOrigins, ", ")
	if !strings.Contains(origins, appConfig.App.BaseUrl) {
		origins += ", " + appConfig.App.BaseUrl
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Tenant-ID, X-Request-ID",
	}))
	app.Use(middleware.Recovery())

	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if appConfig.App.Debug {
		app.Use(logger.New())
	}

	if len(appConfig.App.BasicAuth) == 0 {
		logrus.Fatalln("APP_BASIC_AUTH is required. Nothing should be public; please set APP_BASIC_AUTH=<user>:<secret>[,<user2>:<secret2>] and restart.")
	}
	account := make(map[string]string)
	for _, basicAuth := range appConfig.App.BasicAuth {
		ba := strings.Split(basicAuth, ":")
		if len(ba) != 2 {
			logrus.Fatalln("Basic auth is not valid, please use the format <user>:<secret>")
		}
		account[ba[0]] = ba[1]
	}

	apiGroup := app.Group(appConfig.App.BasePath + "/api")
	apiGroup.Use(basicauth.New(basicauth.Config{
		Users: account,
		Next: func(c *fiber.Ctx) bool {
			// Allow CORS preflight without credentials.
			return c.Method() == fiber.MethodOptions
		},
	}))
	apiGroup.Use(middleware.RequireTenant())

	var (
		pool     *ingestworker.Pool
		stopPool func()
	)
	if withWorkers, _ := cmd.Flags().GetBool("with-workers"); withWorkers {
		pool, stopPool = startIngestPool(context.Background())
	}

	// Health is registered on the app, outside tenant scoping.
	rest.InitRestHealth(app, healthUsecase)

	rest.InitRestApp(apiGroup)
	rest.InitRestCache(apiGroup, cacheUsecase)
	rest.InitRestIngest(apiGroup, jobUsecase)
	rest.InitRestWorkerPool(apiGroup, pool)

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API Endpoint not found",
			"path":  c.Path(),
		})
	})

	var metricsServer *metrics.Server
	if appConfig.Metrics.Enabled {
		metricsServer = metrics.NewServer(appConfig.Metrics.Address, recorder)
		metricsServer.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Termination signal received, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
		if stopPool != nil {
			stopPool()
		}
		if metricsServer != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			metricsServer.Stop(stopCtx)
			cancel()
		}
		StopApp()
	}()

	if err := app.Listen(":" + appConfig.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}
}
