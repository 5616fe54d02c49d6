package utils

import (
	"fmt"
	"strconv"

	"flowdesk/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// LogEvent logs an event with structured data
func LogEvent(eventType string, data map[string]interface{}) {
	fmt.Printf("[%s] %+v\n", eventType, data)
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// NewRequestID generates a request-scoped identifier.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// ErrorResponse creates a standardized error response
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	return c.Status(status).JSON(response)
}

// AppErrorResponse maps a domain error onto its status/code pair. Internal
// errors are reported generically so callers never see implementation detail.
func AppErrorResponse(c *fiber.Ctx, err error) error {
	code, status := apperr.CodeOf(err)
	message := err.Error()
	if code == apperr.CodeInternal || code == apperr.CodeContractViolation {
		message = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}

// PaginatedResponse structure for paginated results
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}
