package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/auth"
	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
	"github.com/josh-kwaku/crowdfund-payments/internal/service/donation"
)

type donationService interface {
	Create(ctx context.Context, req donation.CreateRequest) (*domain.Donation, error)
	Get(ctx context.Context, reference string) (*domain.Donation, error)
	Cancel(ctx context.Context, reference string, donorID uuid.UUID) (*domain.Donation, error)
	History(ctx context.Context, donorID uuid.UUID, status *domain.DonationStatus, page, limit int) ([]domain.Donation, int, error)
	CampaignDonations(ctx context.Context, campaignID uuid.UUID, page, limit int) ([]domain.PublicDonation, int, error)
}

type DonationHandler struct {
	donations donationService
}

func NewDonationHandler(donations donationService) *DonationHandler {
	return &DonationHandler{donations: donations}
}

type createDonationRequest struct {
	CampaignID    string `json:"campaign_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Message       string `json:"message"`
	IsAnonymous   bool   `json:"is_anonymous"`
}

func (r createDonationRequest) Validate() []FieldError {
	var errs []FieldError

	if r.CampaignID == "" {
		errs = append(errs, FieldError{Field: "campaign_id", Message: "required"})
	} else if _, err := uuid.Parse(r.CampaignID); err != nil {
		errs = append(errs, FieldError{Field: "campaign_id", Message: "must be a valid UUID"})
	}

	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}

	if r.PaymentMethod == "" {
		errs = append(errs, FieldError{Field: "payment_method", Message: "required"})
	}

	return errs
}

type donationDTO struct {
	ID            uuid.UUID  `json:"id"`
	Reference     string     `json:"reference"`
	CampaignID    uuid.UUID  `json:"campaign_id"`
	DonorID       *uuid.UUID `json:"donor_id,omitempty"`
	Amount        int64      `json:"amount"`
	Message       *string    `json:"message,omitempty"`
	IsAnonymous   bool       `json:"is_anonymous"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	InvoiceURL    string     `json:"invoice_url,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// toDonationDTO hides who gave an anonymous donation from everyone but the
// donor. The checkout URL is only shown to the donor while payable.
func toDonationDTO(d *domain.Donation, viewerID uuid.UUID) donationDTO {
	dto := donationDTO{
		ID:            d.ID,
		Reference:     d.Reference,
		CampaignID:    d.CampaignID,
		Amount:        d.Amount,
		Message:       d.Message,
		IsAnonymous:   d.IsAnonymous,
		PaymentMethod: string(d.PaymentMethod),
		Status:        string(d.Status),
		ExpiresAt:     d.ExpiresAt,
		PaidAt:        d.PaidAt,
		CreatedAt:     d.CreatedAt,
	}
	isDonor := d.DonorID == viewerID
	if isDonor || !d.IsAnonymous {
		donorID := d.DonorID
		dto.DonorID = &donorID
	}
	if isDonor && d.Status == domain.DonationStatusPending {
		dto.InvoiceURL = d.GatewayInvoiceURL
	}
	return dto
}

type publicDonationDTO struct {
	Reference string    `json:"reference"`
	DonorName string    `json:"donor_name"`
	Amount    int64     `json:"amount"`
	Message   *string   `json:"message,omitempty"`
	PaidAt    time.Time `json:"paid_at"`
}

func (h *DonationHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	d, err := h.donations.Create(r.Context(), donation.CreateRequest{
		CampaignID:    uuid.MustParse(req.CampaignID),
		DonorID:       userID,
		Amount:        req.Amount,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Message:       req.Message,
		IsAnonymous:   req.IsAnonymous,
	})
	if err != nil {
		log.Warn("donation creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/donations/%s", d.Reference))
	RespondSuccess(w, http.StatusCreated, toDonationDTO(d, userID))
}

func (h *DonationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	d, err := h.donations.Get(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		logging.FromContext(r.Context()).Warn("donation lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toDonationDTO(d, userID))
}

func (h *DonationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	d, err := h.donations.Cancel(r.Context(), chi.URLParam(r, "reference"), userID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("donation cancel failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toDonationDTO(d, userID))
}

func (h *DonationHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var status *domain.DonationStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.DonationStatus(s)
		if !st.IsValid() {
			RespondValidationError(w, []FieldError{{Field: "status", Message: "must be pending, paid, expired, cancelled, or failed"}})
			return
		}
		status = &st
	}

	page, limit := pageParams(r)
	donations, total, err := h.donations.History(r.Context(), userID, status, page, limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("donation history failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	items := make([]donationDTO, len(donations))
	for i := range donations {
		items[i] = toDonationDTO(&donations[i], userID)
	}
	p := effectivePage(page, limit)
	p.Total = total
	RespondPage(w, items, p)
}

// CampaignDonations is public and lists paid donations only.
func (h *DonationHandler) CampaignDonations(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondAppError(w, ErrCampaignNotFound, nil)
		return
	}

	page, limit := pageParams(r)
	donations, total, err := h.donations.CampaignDonations(r.Context(), campaignID, page, limit)
	if err != nil {
		logging.FromContext(r.Context()).Warn("campaign donations lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	items := make([]publicDonationDTO, len(donations))
	for i, d := range donations {
		items[i] = publicDonationDTO{
			Reference: d.Reference,
			DonorName: d.DonorName,
			Amount:    d.Amount,
			Message:   d.Message,
			PaidAt:    d.PaidAt,
		}
	}
	p := effectivePage(page, limit)
	p.Total = total
	RespondPage(w, items, p)
}
