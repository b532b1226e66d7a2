package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrInvalidSignature = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrNotAllowed          = &AppError{http.StatusUnprocessableEntity, "NOT_ALLOWED", "Operation not allowed for this payment"}
	ErrNotAuthorised       = &AppError{http.StatusUnprocessableEntity, "NOT_AUTHORISED", "Payment has no succeeded authorisation"}
	ErrProviderUnavailable = &AppError{http.StatusBadGateway, "PROVIDER_UNAVAILABLE", "Payment provider is unavailable"}
)
