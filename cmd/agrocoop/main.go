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
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/cache"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/database"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/env"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/fees"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/jobqueue"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/ratelimit"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/router"
)

func main() {
	app, manager := NewApplication()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	manager.Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	if !env.SetupEnvFile() {
		log.Println("No .env file found, using process environment")
	}
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalFactory().GetRepositories()
	feeService := fees.NewService(repos)

	// background jobs: fee sweep, overdue check, async admin triggers
	manager := jobqueue.GetManager()
	manager.AttachFeeService(feeService)
	manager.Start()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/agrocoop to project root
		"../../../", // Fallback
	}
	basePath := "./"
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			basePath = path
			break
		}
	}

	app := fiber.New(fiber.Config{
		AppName:   "AgroCoop",
		BodyLimit: 1 << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": "request_failed", "message": err.Error()})
		},
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Repositories:   repos,
		Fees:           feeService,
		Jobs:           manager.GetQueue(),
		LimiterStorage: ratelimit.NewStorage(),
		Cache:          cache.GetClient(),
	})

	return app, manager
}
