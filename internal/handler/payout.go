package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/auth"
	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
	"github.com/josh-kwaku/crowdfund-payments/internal/service/payout"
)

type payoutService interface {
	Create(ctx context.Context, req payout.CreateRequest) (*domain.Payout, error)
	ListForCampaign(ctx context.Context, campaignID, requesterID uuid.UUID) ([]domain.Payout, error)
	FundingSummary(ctx context.Context, campaignID uuid.UUID) (*domain.FundingSummary, error)
}

type PayoutHandler struct {
	payouts payoutService
}

func NewPayoutHandler(payouts payoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

type createPayoutRequest struct {
	CampaignID  string `json:"campaign_id"`
	BankEntryID string `json:"bank_entry_id"`
	Amount      int64  `json:"amount"`
}

func (r createPayoutRequest) Validate() []FieldError {
	var errs []FieldError

	if _, err := uuid.Parse(r.CampaignID); err != nil {
		errs = append(errs, FieldError{Field: "campaign_id", Message: "must be a valid UUID"})
	}
	if _, err := uuid.Parse(r.BankEntryID); err != nil {
		errs = append(errs, FieldError{Field: "bank_entry_id", Message: "must be a valid UUID"})
	}
	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}

	return errs
}

type payoutDTO struct {
	ID             uuid.UUID  `json:"id"`
	ExternalID     string     `json:"external_id"`
	CampaignID     uuid.UUID  `json:"campaign_id"`
	BankEntryID    uuid.UUID  `json:"bank_entry_id"`
	Amount         int64      `json:"amount"`
	Status         string     `json:"status"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	DisbursementID string     `json:"disbursement_id"`
	RequestedAt    time.Time  `json:"requested_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toPayoutDTO(p *domain.Payout) payoutDTO {
	return payoutDTO{
		ID:             p.ID,
		ExternalID:     p.ExternalID,
		CampaignID:     p.CampaignID,
		BankEntryID:    p.BankEntryID,
		Amount:         p.Amount,
		Status:         string(p.Status),
		FailureReason:  p.FailureReason,
		DisbursementID: p.GatewayDisbursementID,
		RequestedAt:    p.RequestedAt,
		CompletedAt:    p.CompletedAt,
	}
}

func (h *PayoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, err := h.payouts.Create(r.Context(), payout.CreateRequest{
		CampaignID:  uuid.MustParse(req.CampaignID),
		BankEntryID: uuid.MustParse(req.BankEntryID),
		RequesterID: userID,
		Amount:      req.Amount,
	})
	if err != nil {
		log.Warn("payout request failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusAccepted, toPayoutDTO(p))
}

func (h *PayoutHandler) ListForCampaign(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondAppError(w, ErrCampaignNotFound, nil)
		return
	}

	payouts, err := h.payouts.ListForCampaign(r.Context(), campaignID, userID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payout listing failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	items := make([]payoutDTO, len(payouts))
	for i := range payouts {
		items[i] = toPayoutDTO(&payouts[i])
	}
	RespondSuccess(w, http.StatusOK, items)
}
