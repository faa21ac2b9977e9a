package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken         = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken         = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCallbackToken = &AppError{http.StatusUnauthorized, "INVALID_CALLBACK_TOKEN", "Callback token is invalid"}
	ErrForbidden            = &AppError{http.StatusForbidden, "FORBIDDEN", "You are not allowed to access this resource"}
	ErrInvalidRequest       = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed     = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound     = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrRateLimited          = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, slow down"}
	ErrInternalError        = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrCampaignNotFound      = &AppError{http.StatusNotFound, "CAMPAIGN_NOT_FOUND", "Campaign not found"}
	ErrDonorNotFound         = &AppError{http.StatusNotFound, "DONOR_NOT_FOUND", "Donor not found"}
	ErrDonationNotFound      = &AppError{http.StatusNotFound, "DONATION_NOT_FOUND", "Donation not found"}
	ErrPayoutNotFound        = &AppError{http.StatusNotFound, "PAYOUT_NOT_FOUND", "Payout not found"}
	ErrBankEntryNotFound     = &AppError{http.StatusNotFound, "BANK_ENTRY_NOT_FOUND", "Bank account entry not found"}
	ErrInvalidAmount         = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrAmountBelowMinimum    = &AppError{http.StatusBadRequest, "AMOUNT_BELOW_MINIMUM", "Amount is below the minimum donation"}
	ErrInvalidPaymentMethod  = &AppError{http.StatusBadRequest, "INVALID_PAYMENT_METHOD", "Payment method is not supported"}
	ErrMessageTooLong        = &AppError{http.StatusBadRequest, "MESSAGE_TOO_LONG", "Message is too long"}
	ErrCampaignCompleted     = &AppError{http.StatusConflict, "CAMPAIGN_COMPLETED", "Campaign has reached its goal"}
	ErrDonationNotPending    = &AppError{http.StatusConflict, "DONATION_NOT_PENDING", "Donation is no longer pending"}
	ErrInsufficientBalance   = &AppError{http.StatusConflict, "INSUFFICIENT_BALANCE", "Amount exceeds the withdrawable balance"}
	ErrPayoutInProgress      = &AppError{http.StatusConflict, "PAYOUT_IN_PROGRESS", "Another payout request is in progress"}
	ErrVersionConflict       = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrGateway               = &AppError{http.StatusBadGateway, "GATEWAY_ERROR", "Payment processor is unavailable, try again later"}
)
