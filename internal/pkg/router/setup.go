package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/AgroCoop/app/controllers"
	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/fees"
)

// Router installs a group of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the services the routes are built on.
type Dependencies struct {
	Repositories *repository.Repositories
	Fees         *fees.Service
	// Jobs may be nil; async triggers then answer 503.
	Jobs controllers.JobQueue
	// LimiterStorage may be nil for in-process rate limiting.
	LimiterStorage fiber.Storage
	// Cache backs the sweep counters; nil disables the stats endpoint.
	Cache *redis.Client
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
