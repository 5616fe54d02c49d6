package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"

	"flowdesk/email"
	"flowdesk/queue"
	"flowdesk/utils"

	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries the HMAC-SHA256 signature of the raw webhook body.
const SignatureHeader = "X-Inbound-Signature"

// WebhookController receives provider webhooks. It does no pipeline work
// itself: verify, sanity-check, enqueue, return. Heavy lifting happens in the
// workers so the provider gets a fast 200.
type WebhookController struct {
	queue  queue.Queue
	secret string
	logger *log.Logger
}

func NewWebhookController(q queue.Queue, secret string, logger *log.Logger) *WebhookController {
	return &WebhookController{queue: q, secret: secret, logger: logger}
}

// HandleInbound accepts one inbound-mail webhook and queues it for ingestion.
func (wc *WebhookController) HandleInbound(c *fiber.Ctx) error {
	body := c.Body()

	if wc.secret != "" {
		if !verifySignature(body, c.Get(SignatureHeader), wc.secret) {
			wc.logger.Printf("Rejected inbound webhook with bad signature from %s", c.IP())
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "invalid webhook signature", nil)
		}
	}

	var hook email.InboundWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid webhook payload", err)
	}
	if err := utils.ValidateStruct(hook); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid webhook payload", err)
	}

	if err := wc.queue.Enqueue(c.Context(), queue.QueueInbound, hook); err != nil {
		wc.logger.Printf("Failed to enqueue inbound webhook %s: %v", hook.MessageID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "could not accept message", nil)
	}

	return c.JSON(fiber.Map{"success": true})
}

func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
