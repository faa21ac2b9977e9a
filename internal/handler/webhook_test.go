package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

type mockInvoiceApplier struct {
	got     []domain.InvoiceEvent
	outcome domain.Outcome
	err     error
}

func (m *mockInvoiceApplier) ApplyWebhook(_ context.Context, ev domain.InvoiceEvent) (domain.Outcome, error) {
	m.got = append(m.got, ev)
	return m.outcome, m.err
}

type mockDisbursementApplier struct {
	got     []domain.DisbursementEvent
	outcome domain.Outcome
	err     error
}

func (m *mockDisbursementApplier) ApplyWebhook(_ context.Context, ev domain.DisbursementEvent) (domain.Outcome, error) {
	m.got = append(m.got, ev)
	return m.outcome, m.err
}

type mockDeliveryRepo struct {
	created []*domain.WebhookDelivery
	err     error
}

func (m *mockDeliveryRepo) Create(_ context.Context, d *domain.WebhookDelivery) error {
	m.created = append(m.created, d)
	return m.err
}

const paidInvoiceBody = `{"id":"inv_1","external_id":"DON_1_ABCDEF012345_c1","status":"PAID","paid_at":"2026-03-01T10:00:00Z"}`

func TestInvoiceWebhook(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		outcome     domain.Outcome
		applyErr    error
		wantStatus  int
		wantCode    string
		wantOutcome string
		wantApplied bool
	}{
		{
			name:        "paid invoice applied",
			body:        paidInvoiceBody,
			outcome:     domain.OutcomeApplied,
			wantStatus:  http.StatusOK,
			wantOutcome: "applied",
			wantApplied: true,
		},
		{
			name:        "replay acknowledged as ignored",
			body:        paidInvoiceBody,
			outcome:     domain.OutcomeIgnored,
			wantStatus:  http.StatusOK,
			wantOutcome: "ignored",
			wantApplied: true,
		},
		{
			name:        "unknown donation",
			body:        paidInvoiceBody,
			applyErr:    fmt.Errorf("ApplyWebhook: %w", domain.ErrDonationNotFound),
			wantStatus:  http.StatusNotFound,
			wantCode:    "DONATION_NOT_FOUND",
			wantApplied: true,
		},
		{
			name:        "storage failure asks for redelivery",
			body:        paidInvoiceBody,
			applyErr:    fmt.Errorf("connection reset"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "INTERNAL_ERROR",
			wantApplied: true,
		},
		{
			name:       "malformed json",
			body:       "not-json",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "missing external id",
			body:       `{"id":"inv_1","status":"PAID"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			donations := &mockInvoiceApplier{outcome: tc.outcome, err: tc.applyErr}
			deliveries := &mockDeliveryRepo{}
			h := NewWebhookHandler(donations, &mockDisbursementApplier{}, deliveries)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/invoices", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			h.Invoice(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			if tc.wantCode == "" {
				assert.True(t, resp.Success)
				data, ok := resp.Data.(map[string]any)
				require.True(t, ok)
				assert.Equal(t, tc.wantOutcome, data["status"])
			} else {
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
			}

			if tc.wantApplied {
				require.Len(t, donations.got, 1)
				assert.Equal(t, "DON_1_ABCDEF012345_c1", donations.got[0].ExternalID)
				assert.Equal(t, domain.DonationStatusPaid, donations.got[0].Status)
			} else {
				assert.Empty(t, donations.got)
			}
			require.Len(t, deliveries.created, 1)
			assert.Equal(t, domain.WebhookKindInvoice, deliveries.created[0].Kind)
		})
	}
}

func TestDisbursementWebhook(t *testing.T) {
	payouts := &mockDisbursementApplier{outcome: domain.OutcomeApplied}
	deliveries := &mockDeliveryRepo{}
	h := NewWebhookHandler(&mockInvoiceApplier{}, payouts, deliveries)

	body := `{"id":"disb_9","external_id":"PAY_1_AB12CD34_c1","status":"FAILED","failure_code":"INVALID_DESTINATION"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/disbursements", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Disbursement(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, payouts.got, 1)
	ev := payouts.got[0]
	assert.Equal(t, "disb_9", ev.DisbursementID)
	assert.Equal(t, domain.PayoutStatusFailed, ev.Status)
	assert.Equal(t, "INVALID_DESTINATION", ev.FailureCode)
	assert.JSONEq(t, body, string(ev.Raw))

	require.Len(t, deliveries.created, 1)
	d := deliveries.created[0]
	assert.Equal(t, domain.WebhookKindDisbursement, d.Kind)
	assert.Equal(t, "disb_9", d.ResourceRef)
	assert.Equal(t, "applied", d.Outcome)
}

func TestWebhook_DeliveryAuditFailureDoesNotChangeResponse(t *testing.T) {
	deliveries := &mockDeliveryRepo{err: fmt.Errorf("disk full")}
	h := NewWebhookHandler(&mockInvoiceApplier{outcome: domain.OutcomeApplied}, &mockDisbursementApplier{}, deliveries)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/invoices", strings.NewReader(paidInvoiceBody))
	rr := httptest.NewRecorder()
	h.Invoice(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRespondDomainError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{domain.ErrCampaignNotFound, http.StatusNotFound, "CAMPAIGN_NOT_FOUND"},
		{domain.ErrBankEntryNotFound, http.StatusNotFound, "BANK_ENTRY_NOT_FOUND"},
		{domain.ErrNotFound, http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrAmountBelowMinimum, http.StatusBadRequest, "AMOUNT_BELOW_MINIMUM"},
		{domain.ErrMessageTooLong, http.StatusBadRequest, "MESSAGE_TOO_LONG"},
		{domain.ErrDonationNotPending, http.StatusConflict, "DONATION_NOT_PENDING"},
		{domain.ErrInsufficientBalance, http.StatusConflict, "INSUFFICIENT_BALANCE"},
		{domain.ErrPayoutInProgress, http.StatusConflict, "PAYOUT_IN_PROGRESS"},
		{domain.ErrGateway, http.StatusBadGateway, "GATEWAY_ERROR"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.wantCode, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondDomainError(rr, fmt.Errorf("Op: %w", tc.err))

			assert.Equal(t, tc.wantStatus, rr.Code)
			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}
}

func TestRespondDomainError_DonationStateDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondDomainError(rr, fmt.Errorf("Cancel: %w", &domain.DonationStateError{Status: domain.DonationStatusPaid}))

	assert.Equal(t, http.StatusConflict, rr.Code)
	var resp struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "DONATION_NOT_PENDING", resp.Error.Code)
	assert.Equal(t, "paid", resp.Error.Details["status"])
}
