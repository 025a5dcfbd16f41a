package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sosdesk/intake/app/controllers"
	"github.com/sosdesk/intake/app/repository"
	"github.com/sosdesk/intake/internal/pkg/cache"
	"github.com/sosdesk/intake/internal/pkg/database"
	"github.com/sosdesk/intake/internal/pkg/env"
	"github.com/sosdesk/intake/internal/pkg/eventfeed"
	"github.com/sosdesk/intake/internal/pkg/incident"
	"github.com/sosdesk/intake/internal/pkg/jobqueue"
	"github.com/sosdesk/intake/internal/pkg/mlclient"
	"github.com/sosdesk/intake/internal/pkg/router"
	"github.com/sosdesk/intake/internal/pkg/statistics"
	"github.com/sosdesk/intake/internal/pkg/storage"
)

func main() {
	app, shutdown := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("[Server] Shutting down")
		if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
			log.Errorf("[Server] Shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	shutdown()
	if err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires storage, gateways, the orchestrator and its
// background workers. The returned func stops the workers.
func NewApplication() (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	textClient := mlclient.NewTextClient(mlclient.TextConfigFromEnv())
	imageClient := mlclient.NewImageClient(mlclient.ImageConfigFromEnv())

	local, err := storage.NewLocalStoreFromEnv()
	if err != nil {
		panic(err)
	}
	var files storage.FileStore = local
	s3cfg, err := storage.LoadS3Config()
	if err != nil {
		panic(err)
	}
	if s3cfg.Enabled {
		s3client, err := storage.NewS3Client(context.Background(), s3cfg)
		if err != nil {
			panic(err)
		}
		files = storage.NewMirroredStore(local, s3client)
		log.Infof("[Storage] Mirroring uploads to bucket %s", s3cfg.BucketName)
	}

	cfg := incident.ConfigFromEnv()
	opts := []incident.Option{
		incident.WithFileStore(files),
		incident.WithThumbnailer(storage.NewThumbnailer()),
	}

	var closers []func()

	feedCfg := eventfeed.ConfigFromEnv()
	if feedCfg.Enabled {
		publisher := eventfeed.NewPublisher(feedCfg)
		opts = append(opts, incident.WithStatusPublisher(publisher))
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				log.Errorf("[EventFeed] Close: %v", err)
			}
		})
	}

	var (
		manager *jobqueue.Manager
		queued  *jobqueue.Dispatcher
	)
	if env.GetEnvBool("JOBQUEUE_ENABLED", true) {
		manager = jobqueue.GetManager()
		queued = jobqueue.NewDispatcher(manager.GetQueue())
		opts = append(opts, incident.WithDispatcher(queued))
	}

	svc := incident.NewService(repos, textClient, imageClient, cfg, opts...)

	if manager != nil {
		fallback := incident.NewAsyncDispatcher(svc, cfg.AsyncWorkers, cfg.AnalysisTimeout)
		queued.SetFallback(fallback)
		jobqueue.RegisterAnalysisHandlers(manager.GetQueue(), svc)
		manager.Start()
		closers = append([]func(){manager.Stop, fallback.Wait}, closers...)
	} else if async, ok := svc.Dispatcher().(*incident.AsyncDispatcher); ok {
		closers = append([]func(){async.Wait}, closers...)
		log.Info("[JobQueue] Disabled, analyses run in-process")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.Upload.Limit()) + 1024*1024,
	})

	app.Use(recover.New(), logger.New())

	if user, pass := env.GetEnv("METRICS_USER", ""), env.GetEnv("METRICS_PASSWORD", ""); user != "" && pass != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{user: pass},
		}), monitor.New())
	}

	app.Static(local.URLPrefix, local.Dir, fiber.Static{
		CacheDuration: 10 * time.Second,
		Compress:      false,
		MaxAge:        604800,
	})

	health := controllers.NewHealthController(
		func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		cache.Ping,
		map[string]controllers.HealthChecker{"text": textClient, "image": imageClient},
	)

	apiCfg := router.APIConfig{
		Service:        svc,
		Health:         health,
		Stats:          statistics.New(cache.GetClient(), svc, env.GetEnvDuration("STATS_CACHE_TTL", statistics.CacheExpiration)),
		APIKey:         env.GetEnv("API_KEY", ""),
		AllowedOrigins: env.GetEnv("CORS_ALLOWED_ORIGINS", "*"),
		RateLimit:      env.GetEnvInt("RATE_LIMIT_MAX", router.DefaultRateLimit),
		RateWindow:     env.GetEnvDuration("RATE_LIMIT_WINDOW", router.DefaultRateWindow),
	}
	if env.GetEnvBool("RATE_LIMIT_REDIS", true) {
		apiCfg.LimiterStorage = router.NewLimiterStorage(cache.GetClient())
	}
	if manager != nil {
		apiCfg.Queue = manager.GetQueue()
	}
	router.InstallRouter(app, apiCfg)

	shutdown := func() {
		for _, c := range closers {
			c()
		}
		if err := cache.Close(); err != nil {
			log.Errorf("[Cache] Close: %v", err)
		}
	}
	return app, shutdown
}
