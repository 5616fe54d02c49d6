package controllers

import (
	"log"

	"flowdesk/crm"
	"flowdesk/middleware"
	"flowdesk/utils"

	"github.com/gofiber/fiber/v2"
)

// ContactController serves read access to contacts. Writes go through the
// crm.* actions.
type ContactController struct {
	crm    *crm.Service
	logger *log.Logger
}

func NewContactController(crmSvc *crm.Service, logger *log.Logger) *ContactController {
	return &ContactController{crm: crmSvc, logger: logger}
}

func (cc *ContactController) ListContacts(c *fiber.Ctx) error {
	actx := middleware.Actor(c)

	contacts, err := cc.crm.ListContacts(c.Context(), actx.WorkspaceID)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(contacts))
}

func (cc *ContactController) GetContact(c *fiber.Ctx) error {
	actx := middleware.Actor(c)
	contactID := utils.ParseUint(c.Params("id"))

	contact, err := cc.crm.GetContact(c.Context(), actx.WorkspaceID, contactID)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(contact))
}
