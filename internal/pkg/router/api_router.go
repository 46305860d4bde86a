package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AgroCoop/app/controllers"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/middleware"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/ratelimit"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", ratelimit.New(h.deps.LimiterStorage))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware(h.deps.Repositories.Member))

	rules := controllers.NewFeeRuleController(h.deps.Fees, h.deps.Jobs)
	apps := controllers.NewFeeApplicationController(h.deps.Fees)
	jobs := controllers.NewJobController(h.deps.Jobs)
	stats := controllers.NewStatsController(h.deps.Cache)

	// member
	me := v1.Group("/me", middleware.RequireAuth)
	me.Get("/fee-applications", apps.HandleListMyApplications)
	me.Get("/fee-applications/:id", apps.HandleGetMyApplication)
	me.Post("/fee-applications/:id/payments", apps.HandlePayMyApplication)

	// admin
	admin := v1.Group("/admin", middleware.RequireAdmin)
	admin.Get("/fee-rules", rules.HandleListFeeRules)
	admin.Post("/fee-rules", rules.HandleCreateFeeRule)
	admin.Post("/fee-rules/activate-scheduled", rules.HandleActivateScheduled)
	admin.Get("/fee-rules/:id", rules.HandleGetFeeRule)
	admin.Put("/fee-rules/:id", rules.HandleUpdateFeeRule)
	admin.Delete("/fee-rules/:id", rules.HandleDeleteFeeRule)
	admin.Post("/fee-rules/:id/schedule", rules.HandleScheduleFeeRule)
	admin.Post("/fee-rules/:id/activate", rules.HandleActivateFeeRule)
	admin.Post("/fee-rules/:id/deactivate", rules.HandleDeactivateFeeRule)
	admin.Post("/fee-rules/:id/apply", rules.HandleApplyFeeRule)
	admin.Get("/fee-rules/:id/runs", rules.HandleListFeeRuleRuns)
	admin.Get("/fee-rules/:id/applications", rules.HandleListRuleApplications)
	admin.Post("/fee-sweeps", rules.HandleRunSweep)
	admin.Post("/fee-overdue-checks", rules.HandleMarkOverdue)
	admin.Post("/fee-applications/:id/cancel", apps.HandleCancelApplication)
	admin.Post("/fee-applications/:id/payments", apps.HandleAdminRecordPayment)
	admin.Get("/jobs/:id", jobs.HandleGetJob)
	admin.Get("/fee-stats", stats.HandleSweepStats)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
