package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"testing"

	"flowdesk/email"
	"flowdesk/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "webhook-test-secret"

func newWebhookApp(t *testing.T, secret string) (*fiber.App, *queue.MemoryQueue) {
	t.Helper()
	q := queue.NewMemoryQueue()
	wc := NewWebhookController(q, secret, log.New(io.Discard, "", 0))

	app := fiber.New()
	app.Post("/webhooks/inbound-email", wc.HandleInbound)
	return app, q
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(email.InboundWebhook{
		MessageID: "<m1@provider.test>",
		From:      "jane@example.com",
		To:        "agent@acme.test",
		Subject:   "Hello",
		TextBody:  "Hi there",
	})
	require.NoError(t, err)
	return raw
}

func TestWebhookAcceptsSignedPayload(t *testing.T) {
	app, q := newWebhookApp(t, testSecret)
	body := webhookBody(t)

	req := httptest.NewRequest("POST", "/webhooks/inbound-email", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sign(body, testSecret))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, q.Len(queue.QueueInbound))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app, q := newWebhookApp(t, testSecret)
	body := webhookBody(t)

	req := httptest.NewRequest("POST", "/webhooks/inbound-email", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sign(body, "wrong-secret"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, q.Len(queue.QueueInbound))
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	app, q := newWebhookApp(t, testSecret)
	body := webhookBody(t)

	req := httptest.NewRequest("POST", "/webhooks/inbound-email", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, q.Len(queue.QueueInbound))
}

func TestWebhookOpenModeSkipsVerification(t *testing.T) {
	app, q := newWebhookApp(t, "")
	body := webhookBody(t)

	req := httptest.NewRequest("POST", "/webhooks/inbound-email", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, q.Len(queue.QueueInbound))
}

func TestWebhookRejectsIncompletePayload(t *testing.T) {
	app, q := newWebhookApp(t, "")
	body := []byte(`{"Subject": "no message id or addresses"}`)

	req := httptest.NewRequest("POST", "/webhooks/inbound-email", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, q.Len(queue.QueueInbound))
}
