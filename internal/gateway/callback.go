package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

type invoiceCallback struct {
	ID         string     `json:"id"`
	ExternalID string     `json:"external_id"`
	Status     string     `json:"status"`
	PaidAt     *time.Time `json:"paid_at"`
}

type disbursementCallback struct {
	ID          string `json:"id"`
	ExternalID  string `json:"external_id"`
	Status      string `json:"status"`
	FailureCode string `json:"failure_code"`
}

// ParseInvoiceCallback normalizes an invoice callback body. Malformed bodies
// are reported as domain.ErrInvalidRequest.
func ParseInvoiceCallback(body []byte) (domain.InvoiceEvent, error) {
	var cb invoiceCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return domain.InvoiceEvent{}, fmt.Errorf("ParseInvoiceCallback: %v: %w", err, domain.ErrInvalidRequest)
	}
	if cb.ExternalID == "" || cb.Status == "" {
		return domain.InvoiceEvent{}, fmt.Errorf("ParseInvoiceCallback: external_id and status required: %w", domain.ErrInvalidRequest)
	}

	return domain.InvoiceEvent{
		ExternalID: cb.ExternalID,
		InvoiceID:  cb.ID,
		Status:     InvoiceStatus(cb.Status),
		PaidAt:     cb.PaidAt,
		Raw:        json.RawMessage(body),
	}, nil
}

func ParseDisbursementCallback(body []byte) (domain.DisbursementEvent, error) {
	var cb disbursementCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return domain.DisbursementEvent{}, fmt.Errorf("ParseDisbursementCallback: %v: %w", err, domain.ErrInvalidRequest)
	}
	if cb.ID == "" || cb.Status == "" {
		return domain.DisbursementEvent{}, fmt.Errorf("ParseDisbursementCallback: id and status required: %w", domain.ErrInvalidRequest)
	}

	return domain.DisbursementEvent{
		DisbursementID: cb.ID,
		ExternalID:     cb.ExternalID,
		Status:         DisbursementStatus(cb.Status),
		FailureCode:    cb.FailureCode,
		Raw:            json.RawMessage(body),
	}, nil
}

// InvoiceStatus maps a gateway invoice status. Anything unrecognized is a failure.
func InvoiceStatus(s string) domain.DonationStatus {
	switch strings.ToUpper(s) {
	case "PAID", "SETTLED":
		return domain.DonationStatusPaid
	case "EXPIRED":
		return domain.DonationStatusExpired
	case "PENDING":
		return domain.DonationStatusPending
	default:
		return domain.DonationStatusFailed
	}
}

func DisbursementStatus(s string) domain.PayoutStatus {
	switch strings.ToUpper(s) {
	case "COMPLETED":
		return domain.PayoutStatusCompleted
	case "PENDING":
		return domain.PayoutStatusProcessing
	default:
		return domain.PayoutStatusFailed
	}
}

// Event converts a polled invoice into the same event a callback would carry.
func (inv Invoice) Event() domain.InvoiceEvent {
	raw, _ := json.Marshal(inv)
	return domain.InvoiceEvent{
		ExternalID: inv.ExternalID,
		InvoiceID:  inv.ID,
		Status:     InvoiceStatus(inv.Status),
		PaidAt:     inv.PaidAt,
		Raw:        raw,
	}
}

func (d Disbursement) Event() domain.DisbursementEvent {
	raw, _ := json.Marshal(d)
	return domain.DisbursementEvent{
		DisbursementID: d.ID,
		ExternalID:     d.ExternalID,
		Status:         DisbursementStatus(d.Status),
		FailureCode:    d.FailureCode,
		Raw:            raw,
	}
}
