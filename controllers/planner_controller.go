package controllers

import (
	"log"

	"flowdesk/middleware"
	"flowdesk/planner"
	"flowdesk/utils"

	"github.com/gofiber/fiber/v2"
)

// PlannerController provisions a workspace from a business description.
type PlannerController struct {
	planner *planner.Planner
	logger  *log.Logger
}

func NewPlannerController(p *planner.Planner, logger *log.Logger) *PlannerController {
	return &PlannerController{planner: p, logger: logger}
}

type provisionRequest struct {
	Description string `json:"description" validate:"required"`
	DryRun      bool   `json:"dry_run"`
}

// Provision classifies the business and deploys the resulting plan. With
// dry_run the plan is returned without touching anything.
func (pc *PlannerController) Provision(c *fiber.Ctx) error {
	actx := middleware.Actor(c)

	var req provisionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid request body", err)
	}

	plan := pc.planner.CreatePlan(req.Description)
	if req.DryRun {
		return c.JSON(utils.SuccessResponse(fiber.Map{"plan": plan}))
	}

	result, err := pc.planner.Apply(c.Context(), actx, plan)
	if err != nil {
		pc.logger.Printf("Provisioning failed for workspace %s: %v", actx.WorkspaceID, err)
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "plan could not be applied", err)
	}

	pc.logger.Printf("Provisioned workspace %s as %s: %d/%d workflows deployed",
		actx.WorkspaceID, plan.BusinessType, result.Deployed, result.Attempted)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"plan":   plan,
		"result": result,
	}))
}
