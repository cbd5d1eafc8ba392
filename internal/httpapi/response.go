package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// envelope - общий формат ответа.
type envelope struct {
	Code    int         `json:"code"`
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func success(c *fiber.Ctx, data interface{}) error {
	return successWithCode(c, fiber.StatusOK, data)
}

func successWithCode(c *fiber.Ctx, code int, data interface{}) error {
	return c.Status(code).JSON(envelope{
		Code:   code,
		Status: "success",
		Data:   data,
	})
}

func successWithMeta(c *fiber.Ctx, data, meta interface{}) error {
	return c.Status(fiber.StatusOK).JSON(envelope{
		Code:   fiber.StatusOK,
		Status: "success",
		Data:   data,
		Meta:   meta,
	})
}

// failure отдаёт ошибку с машинным кодом errCode и сообщением для человека.
func failure(c *fiber.Ctx, code int, errCode, message string, details interface{}) error {
	return c.Status(code).JSON(envelope{
		Code:    code,
		Status:  "error",
		Error:   errCode,
		Message: message,
		Details: details,
	})
}

func validationFailure(c *fiber.Ctx, err error) error {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return failure(c, fiber.StatusBadRequest, codeInvalidSubmission, "invalid input", nil)
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Namespace()] = fe.Tag()
	}

	return failure(c, fiber.StatusBadRequest, codeInvalidSubmission, "validation failed", fields)
}
