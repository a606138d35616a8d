package main

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"

	"github.com/assetops/assetcore/internal/config"
	"github.com/assetops/assetcore/internal/database"
	"github.com/assetops/assetcore/internal/handlers"
	"github.com/assetops/assetcore/internal/middleware"
	"github.com/assetops/assetcore/internal/notification"
	"github.com/assetops/assetcore/internal/types"
	"github.com/assetops/assetcore/internal/utils"

	_ "github.com/assetops/assetcore/docs/api" // Swagger docs
)

// @title AssetCore API
// @version 1.0.0
// @description Asset lifecycle engine: formula-driven asset numbering and approval flow tracking
// @termsOfService http://swagger.io/terms/

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Notification collaborator: webhook when configured, log otherwise
	notify := notification.NewManager()
	if cfg.NotifyWebhookURL != "" {
		notify.AddNotifier(notification.NewWebhookNotifier(cfg.NotifyWebhookURL))
	} else {
		notify.AddNotifier(notification.LogNotifier{})
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("assetcore")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health probe
	healthHandler := &handlers.HealthHandler{DB: db, Cfg: cfg}
	app.Get("/health", healthHandler.Health)

	// API routes under /api
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())

	// Create handlers
	ruleHandler := &handlers.RuleHandler{DB: db, Notify: notify}
	assetHandler := &handlers.AssetNumberHandler{DB: db, Notify: notify, RetryLimit: cfg.AllocateRetryLimit}
	flowHandler := &handlers.FlowHandler{DB: db, Notify: notify}
	formHandler := &handlers.FormHandler{DB: db, Notify: notify}
	lifecycleHandler := &handlers.LifecycleHandler{DB: db, Notify: notify}

	// Numbering rule configuration (admin)
	api.Post("/rules", middleware.AuthAdmin(), ruleHandler.CreateRule)
	api.Get("/rules", ruleHandler.ListRules)
	api.Post("/rules/bind", middleware.AuthAdmin(), ruleHandler.BindRule)
	api.Delete("/rules/bind/:class", middleware.AuthAdmin(), ruleHandler.UnbindRule)
	api.Get("/rules/bind/:class", ruleHandler.GetBinding)

	// Asset number allocation
	api.Post("/assets/allocate", middleware.AuthUser(), assetHandler.Allocate)
	api.Post("/assets/manual", middleware.AuthUser(), assetHandler.RecordManual)
	api.Get("/assets/tracks", assetHandler.ListTracks)

	// Flow definitions and event bindings (admin)
	api.Post("/flows", middleware.AuthAdmin(), flowHandler.CreateFlow)
	api.Get("/flows", flowHandler.ListFlows)
	api.Post("/settings", middleware.AuthAdmin(), flowHandler.SetSetting)

	// Flow instances
	api.Post("/forms", middleware.AuthUser(), formHandler.CreateForm)
	api.Get("/forms/:id", formHandler.GetForm)
	api.Post("/forms/:id/decide", middleware.AuthUser(), formHandler.Decide)
	api.Get("/forms/:id/progress", formHandler.Progress)
	api.Get("/forms/:id/logs", formHandler.Logs)

	// Lifecycle actions
	api.Post("/lifecycle/retire", middleware.AuthUser(), lifecycleHandler.Retire)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Authorizer is initialized lazily on the first authenticated request
	log.Printf("Authorizer will be initialized on first authenticated request")

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Check if it's an application error carrying its own status
	var customErr *types.CustomError
	if errors.As(err, &customErr) {
		code = customErr.Code
		message = customErr.Message
		errorType = customErr.Type
	} else if status := utils.StatusForError(err); status != fiber.StatusInternalServerError {
		code = status
		errorType = "domain"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
