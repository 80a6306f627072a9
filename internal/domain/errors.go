package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrTenantNotFound = &AppError{
		Code:       "TENANT_NOT_FOUND",
		Message:    "Tenant not found",
		StatusCode: 404,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrSchemaValidation = &AppError{
		Code:       "SCHEMA_VALIDATION_FAILED",
		Message:    "Event payload is missing required fields",
		StatusCode: 422,
	}

	ErrWebhookNotConfigured = &AppError{
		Code:       "WEBHOOK_NOT_CONFIGURED",
		Message:    "Tenant has no webhook configured",
		StatusCode: 404,
	}

	ErrWebhookConfigReadOnly = &AppError{
		Code:       "WEBHOOK_CONFIG_READ_ONLY",
		Message:    "Webhook configuration is managed by files and cannot be changed over the API",
		StatusCode: 409,
	}

	ErrInvalidWebhookURL = &AppError{
		Code:       "INVALID_WEBHOOK_URL",
		Message:    "Webhook URL must be an absolute http or https URL",
		StatusCode: 422,
	}

	ErrInvalidWebhookEvent = &AppError{
		Code:       "INVALID_WEBHOOK_EVENT",
		Message:    "Event type is not eligible for webhook delivery",
		StatusCode: 422,
	}

	ErrTenantStoreDisabled = &AppError{
		Code:       "TENANT_STORE_DISABLED",
		Message:    "Tenant management requires a database",
		StatusCode: 404,
	}

	ErrUsageDisabled = &AppError{
		Code:       "USAGE_DISABLED",
		Message:    "Usage metering is not enabled",
		StatusCode: 404,
	}
)
