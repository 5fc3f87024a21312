package apperror

import (
	"fmt"

	"bookwhisperer/config"
	"bookwhisperer/pkg/apperror/status"
	"bookwhisperer/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

// ErrorResponse is the standardized HTTP error payload
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

// SuccessMessage is the standardized HTTP success envelope
type SuccessMessage struct {
	Code       status.SuccessCode `json:"code"`
	Message    string             `json:"message"`
	TrackingID string             `json:"tracking_id"`
	Data       any                `json:"data,omitempty"`
}

// WriteError logs a structured warning and returns a standardized JSON error
func WriteError(module config.Module, c fiber.Ctx, httpStatus int, code string, message string) error {
	logger.WithFields(map[string]interface{}{
		"module":        module,
		"status_code":   httpStatus,
		"error_code":    code,
		"error_message": message,
		"http_method":   c.Method(),
		"path":          c.Path(),
		"url":           c.OriginalURL(),
		"ip":            c.IP(),
	}).Warnf("http error")

	return c.Status(httpStatus).JSON(ErrorResponse{
		Error:     message,
		ErrorCode: code,
	})
}

// Shorthands for common error responses

func BadRequest(module config.Module, c fiber.Ctx, code status.ErrorCode, message string) error {
	return WriteError(module, c, fiber.StatusBadRequest, fmt.Sprintf("BW-%d", code), message)
}

func NotFound(module config.Module, c fiber.Ctx, code status.ErrorCode, message string) error {
	return WriteError(module, c, fiber.StatusNotFound, fmt.Sprintf("BW-%d", code), message)
}

func Conflict(module config.Module, c fiber.Ctx, code status.ErrorCode, message string) error {
	return WriteError(module, c, fiber.StatusConflict, fmt.Sprintf("BW-%d", code), message)
}

func InternalError(module config.Module, c fiber.Ctx, err error) error {
	code := status.ErrorCodeInternal
	if coded, ok := err.(status.CodedError); ok {
		code = coded.ErrorCode()
	}
	return WriteError(module, c, fiber.StatusInternalServerError, fmt.Sprintf("BW-%d", code), err.Error())
}

// Success writes a standardized JSON success response
func Success(c fiber.Ctx, response SuccessMessage) error {
	return c.Status(fiber.StatusOK).JSON(response)
}

// Created writes a standardized JSON success response with 201
func Created(c fiber.Ctx, response SuccessMessage) error {
	return c.Status(fiber.StatusCreated).JSON(response)
}
