package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
	"github.com/josh-kwaku/crowdfund-payments/internal/notify"
)

type CampaignHandler struct {
	payouts payoutService
}

func NewCampaignHandler(payouts payoutService) *CampaignHandler {
	return &CampaignHandler{payouts: payouts}
}

type fundingDTO struct {
	CampaignID      uuid.UUID       `json:"campaign_id"`
	Status          string          `json:"status"`
	GoalAmount      int64           `json:"goal_amount"`
	CurrentAmount   int64           `json:"current_amount"`
	PayoutAmount    int64           `json:"payout_amount"`
	Outstanding     int64           `json:"outstanding_payouts"`
	Withdrawable    int64           `json:"withdrawable"`
	ProgressPercent decimal.Decimal `json:"progress_percent"`
	Display         fundingDisplay  `json:"display"`
}

type fundingDisplay struct {
	Goal    string `json:"goal"`
	Current string `json:"current"`
}

func (h *CampaignHandler) Funding(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondAppError(w, ErrCampaignNotFound, nil)
		return
	}

	s, err := h.payouts.FundingSummary(r.Context(), campaignID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("funding summary failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, fundingDTO{
		CampaignID:      s.CampaignID,
		Status:          string(s.Status),
		GoalAmount:      s.GoalAmount,
		CurrentAmount:   s.CurrentAmount,
		PayoutAmount:    s.PayoutAmount,
		Outstanding:     s.Outstanding,
		Withdrawable:    s.Withdrawable,
		ProgressPercent: s.ProgressPercent,
		Display: fundingDisplay{
			Goal:    notify.FormatIDR(s.GoalAmount),
			Current: notify.FormatIDR(s.CurrentAmount),
		},
	})
}
