package middleware

import (
	"flowdesk/registry"
	"flowdesk/utils"

	"github.com/gofiber/fiber/v2"
)

const actorLocalKey = "actor"

// ActorContext resolves who is calling from the X-Workspace-ID and X-User-ID
// headers and stores a registry.Context in the request locals. Requests
// without a workspace are rejected before any handler runs.
func ActorContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID := c.Get("X-Workspace-ID")
		if workspaceID == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "X-Workspace-ID header is required", nil)
		}

		c.Locals(actorLocalKey, registry.Context{
			WorkspaceID: workspaceID,
			UserID:      c.Get("X-User-ID"),
			RequestID:   utils.NewRequestID(),
		})
		return c.Next()
	}
}

// Actor pulls the caller identity stored by ActorContext.
func Actor(c *fiber.Ctx) registry.Context {
	if actx, ok := c.Locals(actorLocalKey).(registry.Context); ok {
		return actx
	}
	return registry.Context{}
}
