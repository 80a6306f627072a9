package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/audit"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/metrics"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/ws"
)

// Dependencies are built by the caller. Optional fields may be left nil.
type Dependencies struct {
	Bus      handler.EventBus
	Webhooks handler.WebhookConfigs

	// WebhookWriter is set only when webhook configs live in Postgres.
	WebhookWriter handler.TenantStore

	// Usage and Tenants are both required for the usage endpoint.
	Usage   handler.UsageService
	Tenants handler.TenantGetter

	// TenantDirectory backs tenant provisioning. Nil without a database.
	TenantDirectory handler.TenantDirectory

	Hub     *ws.Hub
	Metrics *metrics.Metrics
	Audit   audit.Logger
	Checks  map[string]handler.ReadinessCheck
}

type Router struct {
	app    *fiber.App
	logger *slog.Logger
	deps   *Dependencies
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(logger),
		AppName:               "Eventcore API",
		DisableStartupMessage: true,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	healthHandler := handler.NewHealthHandler(r.deps.Checks)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps.Metrics != nil {
		r.app.Get("/metrics", adaptor.HTTPHandler(r.deps.Metrics.Handler()))
	}

	v1 := r.app.Group("/v1")

	// Events
	eventsHandler := handler.NewEventsHandler(r.deps.Bus, r.deps.Audit, r.logger)
	v1.Post("/events", eventsHandler.Publish)
	v1.Get("/events/metrics", eventsHandler.Metrics)
	v1.Get("/events/schemas", eventsHandler.Schemas)

	// Tenants
	tenantsHandler := handler.NewTenantsHandler(r.deps.TenantDirectory, r.deps.Bus, r.deps.Audit, r.logger)
	v1.Post("/tenants", tenantsHandler.Create)
	v1.Get("/tenants", tenantsHandler.List)

	// Tenant scoped routes
	tenants := v1.Group("/tenants/:tenant", middleware.Tenant())

	webhookHandler := handler.NewWebhookHandler(r.deps.Webhooks, r.deps.WebhookWriter, r.deps.Audit, r.logger)
	tenants.Get("/webhook", webhookHandler.Get)
	tenants.Put("/webhook", webhookHandler.Update)
	tenants.Delete("/webhook", webhookHandler.Delete)

	usageHandler := handler.NewUsageHandler(r.deps.Usage, r.deps.Tenants)
	tenants.Get("/usage", usageHandler.GetUsage)

	// WebSocket endpoint
	if r.deps.Hub != nil {
		v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}
