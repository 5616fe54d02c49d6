package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"flowdesk/config"
	"flowdesk/crm"
	"flowdesk/email"
	"flowdesk/middleware"
	"flowdesk/planner"
	"flowdesk/queue"
	"flowdesk/registry"
	"flowdesk/routes"
	"flowdesk/worker"
	"flowdesk/workflow"
)

func main() {
	logger := log.New(os.Stdout, "MAIN: ", log.Ldate|log.Ltime|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			logger.Printf("⚠️  Sentry init failed: %v", err)
		}
	}

	db, err := config.ConnectDB(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	redisQueue, err := queue.NewRedisQueue(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisQueue.Close()

	// Domain services
	crmService := crm.NewService(db)
	emailService := email.NewService(db, email.NewSMTPTransport(cfg.SMTP), crmService)
	workflowService := workflow.NewService(db, workflow.NewN8NAdapter(cfg.Engine.BaseURL, cfg.Engine.APIKey))

	// Action registry
	reg := registry.New()
	if err := crm.RegisterActions(reg, crmService); err != nil {
		logger.Fatalf("Failed to register CRM actions: %v", err)
	}
	if err := email.RegisterActions(reg, emailService); err != nil {
		logger.Fatalf("Failed to register email actions: %v", err)
	}
	if err := workflow.RegisterActions(reg, workflowService); err != nil {
		logger.Fatalf("Failed to register workflow actions: %v", err)
	}

	businessPlanner := planner.New(reg)

	// Message pipeline workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipeline := worker.NewPipeline(redisQueue, redisQueue, emailService)
	pipeline.Start(ctx)

	// HTTP surface
	app := fiber.New()
	app.Use(middleware.CORS())

	routes.SetupRoutes(app, routes.Deps{
		DB:            db,
		Registry:      reg,
		CRM:           crmService,
		Email:         emailService,
		Workflows:     workflowService,
		Planner:       businessPlanner,
		Queue:         redisQueue,
		WebhookSecret: cfg.InboundWebhookSecret,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	logger.Printf("🚀 Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
