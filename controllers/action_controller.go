package controllers

import (
	"log"

	"flowdesk/middleware"
	"flowdesk/registry"
	"flowdesk/utils"

	"github.com/gofiber/fiber/v2"
)

// ActionController exposes the action registry over HTTP: list what exists,
// call anything by name.
type ActionController struct {
	registry *registry.Registry
	logger   *log.Logger
}

func NewActionController(r *registry.Registry, logger *log.Logger) *ActionController {
	return &ActionController{registry: r, logger: logger}
}

// ListActions returns the registered capabilities with their schemas.
func (ac *ActionController) ListActions(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(ac.registry.List()))
}

// CallAction dispatches POST /actions/:name. The request body is the action's
// input; validation happens inside the registry.
func (ac *ActionController) CallAction(c *fiber.Ctx) error {
	name := c.Params("name")
	actx := middleware.Actor(c)

	var input map[string]interface{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "request body must be a JSON object", err)
		}
	}

	output, err := ac.registry.Call(c.Context(), name, input, actx)
	if err != nil {
		ac.logger.Printf("Action %s failed (request %s): %v", name, actx.RequestID, err)
		return utils.AppErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(output))
}
