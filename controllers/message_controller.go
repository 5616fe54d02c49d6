package controllers

import (
	"log"

	"flowdesk/email"
	"flowdesk/middleware"
	"flowdesk/models"
	"flowdesk/queue"
	"flowdesk/utils"
	"flowdesk/worker"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// MessageController serves the inbox surface: threads, their messages, and
// the approve step that releases a draft into the send queue.
type MessageController struct {
	db     *gorm.DB
	email  *email.Service
	queue  queue.Queue
	logger *log.Logger
}

func NewMessageController(db *gorm.DB, emailSvc *email.Service, q queue.Queue, logger *log.Logger) *MessageController {
	return &MessageController{db: db, email: emailSvc, queue: q, logger: logger}
}

// ListThreads returns the workspace's threads, most recently active first.
func (mc *MessageController) ListThreads(c *fiber.Ctx) error {
	actx := middleware.Actor(c)

	var threads []models.Thread
	err := mc.db.Where("workspace_id = ?", actx.WorkspaceID).
		Order("last_message_at DESC NULLS LAST").
		Limit(100).
		Find(&threads).Error
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(threads))
}

// GetThreadMessages returns one thread's messages in arrival order.
func (mc *MessageController) GetThreadMessages(c *fiber.Ctx) error {
	actx := middleware.Actor(c)
	threadID := utils.ParseUint(c.Params("id"))

	messages, err := mc.email.ListThreadMessages(c.Context(), actx.WorkspaceID, threadID)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(messages))
}

// ApproveMessage marks a draft approved and queues it for sending.
func (mc *MessageController) ApproveMessage(c *fiber.Ctx) error {
	actx := middleware.Actor(c)
	messageID := utils.ParseUint(c.Params("id"))

	if err := mc.email.Approve(c.Context(), actx.WorkspaceID, messageID); err != nil {
		return utils.AppErrorResponse(c, err)
	}
	if err := mc.queue.Enqueue(c.Context(), queue.QueueSend, worker.SendJob{MessageID: messageID}); err != nil {
		mc.logger.Printf("Approved message %d but could not queue the send: %v", messageID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "approved, but sending could not be scheduled", nil)
	}

	mc.logger.Printf("Message %d approved by %s, send queued", messageID, actx.UserID)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message_id": messageID,
		"status":     models.MessageApproved,
	}))
}
