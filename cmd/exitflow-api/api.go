// Package main provides the Exitflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/mbellotti/exitflow/pkg/approval"
	"github.com/mbellotti/exitflow/pkg/eventbus"
	"github.com/mbellotti/exitflow/pkg/forms"
	"github.com/mbellotti/exitflow/pkg/notification"
	"github.com/mbellotti/exitflow/pkg/orchestrator"
	"github.com/mbellotti/exitflow/pkg/persistence"
	"github.com/mbellotti/exitflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	dispatcher := notification.NewDispatcher(
		a.persistence.NotificationRepository(),
		a.persistence.DirectoryRepository(),
		notification.NewLogTransport(a.logger),
		notification.DefaultConfig(),
		a.logger,
	)

	approvals := approval.NewManager(a.persistence.LeaseExitRepository(), approval.DefaultConfig(), a.logger)

	workflowOrchestrator := orchestrator.NewOrchestrator(
		a.persistence,
		approvals,
		dispatcher,
		forms.NewValidator(),
		a.eventBus,
		a.tracer,
		orchestrator.DefaultConfig(),
		a.logger,
	)

	handlers := web.NewAPIHandlers(workflowOrchestrator, dispatcher, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Exitflow API")
	})

	le := app.Group("/lease-exits")
	le.Get("/", handlers.GetLeaseExits)
	le.Post("/", handlers.CreateLeaseExit)
	le.Get("/:id", handlers.GetLeaseExit)
	le.Post("/:id/forms", handlers.SubmitForm)
	le.Post("/:id/approval-chain", handlers.CreateApprovalChain)
	le.Post("/:id/approvals", handlers.DecideApproval)
	le.Get("/:id/notifications", handlers.GetLeaseExitNotifications)

	app.Post("/notifications/resend-failed", handlers.ResendFailedNotifications)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
