package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/DenialAppealPro/appealpro/app/controllers"
	"github.com/DenialAppealPro/appealpro/app/repository"
	apiv1 "github.com/DenialAppealPro/appealpro/internal/api/v1"
	"github.com/DenialAppealPro/appealpro/internal/pkg/billing"
	"github.com/DenialAppealPro/appealpro/internal/pkg/cache"
	"github.com/DenialAppealPro/appealpro/internal/pkg/database"
	"github.com/DenialAppealPro/appealpro/internal/pkg/env"
	"github.com/DenialAppealPro/appealpro/internal/pkg/gate"
	"github.com/DenialAppealPro/appealpro/internal/pkg/jobqueue"
	"github.com/DenialAppealPro/appealpro/internal/pkg/ledger"
	"github.com/DenialAppealPro/appealpro/internal/pkg/middleware"
	"github.com/DenialAppealPro/appealpro/internal/pkg/pipeline"
	"github.com/DenialAppealPro/appealpro/internal/pkg/router"
	"github.com/DenialAppealPro/appealpro/internal/pkg/rules"
	"github.com/DenialAppealPro/appealpro/internal/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApplication(ctx)
	manager := jobqueue.GetManager()
	manager.Start()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	manager.Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication(ctx context.Context) *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/appealpro to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + apiv1.DefaultSpecPath); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	if _, err := apiv1.LoadSpec(ctx, basePath+apiv1.DefaultSpecPath); err != nil {
		panic(err)
	}

	ctl := newController(ctx)

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "appealpro",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + apiv1.DefaultSpecPath,
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	limit := middleware.LoadRateLimitConfig()
	limit.Storage = middleware.NewRedisLimiterStorage()
	router.InstallRouter(app, ctl, router.ApiConfig{
		APIKeys:   middleware.LoadAPIKeys(),
		RateLimit: limit,
	})

	return app
}

func newController(ctx context.Context) *controllers.Controller {
	db := database.GetDB()

	storeCfg, err := storage.LoadConfig()
	if err != nil {
		panic(err)
	}
	store, err := storage.New(ctx, storeCfg)
	if err != nil {
		panic(err)
	}

	gateCfg, err := gate.LoadConfig()
	if err != nil {
		panic(err)
	}
	billingCfg, err := billing.LoadConfig()
	if err != nil {
		panic(err)
	}

	l := ledger.New(db)
	repository.InitializeFactory(db)

	return controllers.New(controllers.Options{
		Gate:     gate.New(db, l, pipeline.New(store), gateCfg),
		Ledger:   l,
		Billing:  billing.NewServiceFromDB(db),
		Stripe:   billing.NewStripeAdapter(billingCfg),
		Store:    store,
		Repos:    repository.GetGlobalFactory(),
		Rules:    rules.NewEngine(db),
		Notifier: jobqueue.GetManager().GetQueue(),

		PublicBaseURL: env.GetEnv("APP_PUBLIC_URL", "http://localhost:4000"),
		Checks: map[string]controllers.Pinger{
			"database": controllers.PingFunc(func() error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Ping()
			}),
			"cache": controllers.PingFunc(func() error {
				return cache.Ping(2 * time.Second)
			}),
		},
	})
}
