package handlerUtil

import (
	"BatteryDetect/pkg/log"
	"BatteryDetect/pkg/response"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle answers with a JSON error body. Domain errors keep their status,
// anything else becomes a 500 with a trace id.
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.LogDomainError(requestID, err, path, operation)
		return c.Status(respErr.Code).JSON(ErrorResponse{Error: err.Error()})
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return h.HandleRequestTimeout(c)
	}

	traceID := log.ErrorWithTraceID(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "An unexpected error occurred",
		TraceID: traceID,
	})
}

// IsDomainError reports whether err is one a page can show as an alert.
func (h *ErrorHandler) IsDomainError(err error) bool {
	var respErr *response.Error
	return errors.As(err, &respErr)
}

func (h *ErrorHandler) StatusFor(err error) int {
	if err == nil {
		return fiber.StatusOK
	}
	return response.StatusCode(err, fiber.StatusInternalServerError)
}

func (h *ErrorHandler) LogDomainError(requestID string, err error, path string, operation string) {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"code":       h.StatusFor(err),
		"path":       path,
		"operation":  operation,
	}).Warn("Operation failed with error response")
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{Error: utils.StatusMessage(fiber.StatusRequestTimeout)})
}

// FiberErrorHandler replaces fiber's plain-text default so routing and body
// limit errors use the same JSON shape.
func (h *ErrorHandler) FiberErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	fields := log.Fields{
		"path":   c.Path(),
		"method": c.Method(),
		"status": code,
		"error":  err.Error(),
	}
	if code >= fiber.StatusInternalServerError {
		h.logger.WithFields(fields).Error("Request failed")
	} else {
		h.logger.WithFields(fields).Debug("Request rejected")
	}

	return c.Status(code).JSON(ErrorResponse{Error: utils.StatusMessage(code)})
}
