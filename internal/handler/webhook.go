package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

const maxWebhookBody = 1 << 20

type invoiceEventApplier interface {
	ApplyWebhook(ctx context.Context, ev domain.InvoiceEvent) (domain.Outcome, error)
}

type disbursementEventApplier interface {
	ApplyWebhook(ctx context.Context, ev domain.DisbursementEvent) (domain.Outcome, error)
}

type webhookDeliveryRepository interface {
	Create(ctx context.Context, d *domain.WebhookDelivery) error
}

// WebhookHandler receives processor callbacks. The callback token is checked
// by middleware before these handlers run.
type WebhookHandler struct {
	donations  invoiceEventApplier
	payouts    disbursementEventApplier
	deliveries webhookDeliveryRepository
}

func NewWebhookHandler(donations invoiceEventApplier, payouts disbursementEventApplier, deliveries webhookDeliveryRepository) *WebhookHandler {
	return &WebhookHandler{donations: donations, payouts: payouts, deliveries: deliveries}
}

func (h *WebhookHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, domain.WebhookKindInvoice, func(body []byte) (domain.GatewayEvent, error) {
		return gateway.ParseInvoiceCallback(body)
	})
}

func (h *WebhookHandler) Disbursement(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, domain.WebhookKindDisbursement, func(body []byte) (domain.GatewayEvent, error) {
		return gateway.ParseDisbursementCallback(body)
	})
}

func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request, kind domain.WebhookKind, parse func([]byte) (domain.GatewayEvent, error)) {
	log := logging.FromContext(r.Context()).With("webhook_kind", kind)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	ev, err := parse(body)
	if err != nil {
		log.Warn("malformed webhook payload", "error", err)
		h.record(r.Context(), kind, "", "invalid", nil)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var (
		outcome domain.Outcome
		ref     string
	)
	switch e := ev.(type) {
	case domain.InvoiceEvent:
		ref = e.ExternalID
		outcome, err = h.donations.ApplyWebhook(r.Context(), e)
	case domain.DisbursementEvent:
		ref = e.DisbursementID
		outcome, err = h.payouts.ApplyWebhook(r.Context(), e)
	}

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDonationNotFound), errors.Is(err, domain.ErrPayoutNotFound):
			log.Warn("webhook for unknown resource", "resource_ref", ref)
			h.record(r.Context(), kind, ref, "not_found", body)
			RespondDomainError(w, err)
		case errors.Is(err, domain.ErrInvalidRequest):
			h.record(r.Context(), kind, ref, "invalid", body)
			RespondAppError(w, ErrInvalidRequest, nil)
		default:
			log.Error("webhook processing failed", "resource_ref", ref, "error", err)
			h.record(r.Context(), kind, ref, "error", body)
			RespondAppError(w, ErrInternalError, nil)
		}
		return
	}

	h.record(r.Context(), kind, ref, string(outcome), body)
	RespondSuccess(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

// record keeps an audit row per delivery. A failure here never changes the
// response the processor sees.
func (h *WebhookHandler) record(ctx context.Context, kind domain.WebhookKind, ref, outcome string, body []byte) {
	if h.deliveries == nil {
		return
	}
	d := &domain.WebhookDelivery{
		ID:          uuid.New(),
		Kind:        kind,
		ResourceRef: ref,
		Outcome:     outcome,
		Payload:     body,
		ReceivedAt:  time.Now().UTC(),
	}
	if err := h.deliveries.Create(context.WithoutCancel(ctx), d); err != nil {
		logging.FromContext(ctx).Warn("failed to record webhook delivery", "resource_ref", ref, "error", err)
	}
}
