package controllers

import (
	"log"

	"flowdesk/middleware"
	"flowdesk/utils"
	"flowdesk/workflow"

	"github.com/gofiber/fiber/v2"
)

// AutomationController serves read access to automations and their runs.
// Mutations go through the action registry (workflow.create and friends).
type AutomationController struct {
	workflows *workflow.Service
	logger    *log.Logger
}

func NewAutomationController(workflows *workflow.Service, logger *log.Logger) *AutomationController {
	return &AutomationController{workflows: workflows, logger: logger}
}

// ListAutomations returns the workspace's automations.
func (ac *AutomationController) ListAutomations(c *fiber.Ctx) error {
	actx := middleware.Actor(c)

	automations, err := ac.workflows.List(actx.WorkspaceID)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(automations))
}

// GetRunStatus reports the state of one workflow execution.
func (ac *AutomationController) GetRunStatus(c *fiber.Ctx) error {
	runID := c.Params("runId")

	status, err := ac.workflows.RunStatus(c.Context(), runID)
	if err != nil {
		ac.logger.Printf("Could not fetch run %s: %v", runID, err)
		return utils.AppErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"run_id": runID,
		"status": status,
	}))
}
