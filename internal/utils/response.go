package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

// APIResponse is the envelope every REST endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus answers with a success envelope and the given status, 200 when zero.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	if message == "" {
		message = "success"
	}
	return c.Status(status).JSON(APIResponse{Success: true, Data: data, Message: message})
}

// SendError answers with a failure envelope. A blank message falls back to the status text.
func SendError(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = fiber.ErrInternalServerError.Message
		if text := fiberutils.StatusMessage(status); text != "" {
			message = text
		}
	}
	return c.Status(status).JSON(APIResponse{Success: false, Message: message})
}

// ErrorHandler renders errors that escape the handlers, such as unknown routes or
// framework rejections, with the same envelope. Anything that is not a *fiber.Error is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return SendError(c, fiberErr.Code, fiberErr.Message)
	}
	return SendError(c, fiber.StatusInternalServerError, "")
}
