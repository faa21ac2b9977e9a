package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type pagedData struct {
	Items      any        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{Success: true, Data: data})
}

func RespondPage(w http.ResponseWriter, items any, p Pagination) {
	RespondSuccess(w, http.StatusOK, pagedData{Items: items, Pagination: p})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// domainErrors is checked in order, so specific not-found errors come before
// the generic one.
var domainErrors = []struct {
	err    error
	appErr *AppError
}{
	{domain.ErrCampaignNotFound, ErrCampaignNotFound},
	{domain.ErrDonorNotFound, ErrDonorNotFound},
	{domain.ErrDonationNotFound, ErrDonationNotFound},
	{domain.ErrPayoutNotFound, ErrPayoutNotFound},
	{domain.ErrBankEntryNotFound, ErrBankEntryNotFound},
	{domain.ErrNotFound, ErrResourceNotFound},
	{domain.ErrForbidden, ErrForbidden},
	{domain.ErrAmountBelowMinimum, ErrAmountBelowMinimum},
	{domain.ErrInvalidPaymentMethod, ErrInvalidPaymentMethod},
	{domain.ErrMessageTooLong, ErrMessageTooLong},
	{domain.ErrInvalidAmount, ErrInvalidAmount},
	{domain.ErrInvalidRequest, ErrInvalidRequest},
	{domain.ErrCampaignCompleted, ErrCampaignCompleted},
	{domain.ErrDonationNotPending, ErrDonationNotPending},
	{domain.ErrInsufficientBalance, ErrInsufficientBalance},
	{domain.ErrPayoutInProgress, ErrPayoutInProgress},
	{domain.ErrVersionConflict, ErrVersionConflict},
	{domain.ErrGateway, ErrGateway},
}

func RespondDomainError(w http.ResponseWriter, err error) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			RespondAppError(w, m.appErr, errorDetails(err))
			return
		}
	}
	slog.Error("unhandled domain error", "error", err)
	RespondAppError(w, ErrInternalError, nil)
}

type stateDetails struct {
	Status string `json:"status"`
}

func errorDetails(err error) any {
	var stateErr *domain.DonationStateError
	if errors.As(err, &stateErr) {
		return stateDetails{Status: string(stateErr.Status)}
	}
	return nil
}

// pageParams reads ?page= and ?limit=. Missing or malformed values fall back
// to the service defaults.
func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

func effectivePage(page, limit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	return Pagination{Page: page, Limit: min(limit, 100)}
}
