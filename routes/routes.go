package routes

import (
	"log"
	"os"

	controller "flowdesk/controllers"
	"flowdesk/crm"
	"flowdesk/email"
	"flowdesk/middleware"
	"flowdesk/planner"
	"flowdesk/queue"
	"flowdesk/registry"
	"flowdesk/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

// Deps carries everything the HTTP layer needs, wired once in main.
type Deps struct {
	DB            *gorm.DB
	Registry      *registry.Registry
	CRM           *crm.Service
	Email         *email.Service
	Workflows     *workflow.Service
	Planner       *planner.Planner
	Queue         queue.Queue
	WebhookSecret string
}

// SetupRoutes mounts the public webhook endpoint and the workspace-scoped
// API.
func SetupRoutes(app *fiber.App, deps Deps) {
	routeLogger := log.New(os.Stdout, "ROUTES: ", log.Ldate|log.Ltime|log.Lshortfile)

	actionController := controller.NewActionController(deps.Registry, log.New(os.Stdout, "ACTION: ", log.LstdFlags))
	webhookController := controller.NewWebhookController(deps.Queue, deps.WebhookSecret, log.New(os.Stdout, "WEBHOOK: ", log.LstdFlags))
	messageController := controller.NewMessageController(deps.DB, deps.Email, deps.Queue, log.New(os.Stdout, "MESSAGE: ", log.LstdFlags))
	automationController := controller.NewAutomationController(deps.Workflows, log.New(os.Stdout, "AUTOMATION: ", log.LstdFlags))
	contactController := controller.NewContactController(deps.CRM, log.New(os.Stdout, "CONTACT: ", log.LstdFlags))
	plannerController := controller.NewPlannerController(deps.Planner, log.New(os.Stdout, "PLANNER: ", log.LstdFlags))

	// Provider webhooks are authenticated by signature, not by workspace
	// headers.
	webhooks := app.Group("/webhooks", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	webhooks.Post("/inbound-email", webhookController.HandleInbound)

	// Workspace-scoped API
	api := app.Group("/api/v1", middleware.ActorContext(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Action registry
	actions := api.Group("/actions")
	actions.Get("/", actionController.ListActions)
	actions.Post("/:name", actionController.CallAction)

	// Inbox
	threads := api.Group("/threads")
	threads.Get("/", messageController.ListThreads)
	threads.Get("/:id/messages", messageController.GetThreadMessages)
	api.Post("/messages/:id/approve", messageController.ApproveMessage)

	// Contacts (reads; writes go through crm.* actions)
	contacts := api.Group("/contacts")
	contacts.Get("/", contactController.ListContacts)
	contacts.Get("/:id", contactController.GetContact)

	// Automations (reads; mutations go through workflow.* actions)
	automations := api.Group("/automations")
	automations.Get("/", automationController.ListAutomations)
	automations.Get("/runs/:runId", automationController.GetRunStatus)

	// Provisioning
	api.Post("/planner/provision", plannerController.Provision)

	routeLogger.Println("Routes initialized successfully")
}
