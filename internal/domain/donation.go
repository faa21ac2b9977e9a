package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusPaid      DonationStatus = "paid"
	DonationStatusExpired   DonationStatus = "expired"
	DonationStatusCancelled DonationStatus = "cancelled"
	DonationStatusFailed    DonationStatus = "failed"
)

func (s DonationStatus) IsValid() bool {
	switch s {
	case DonationStatusPending, DonationStatusPaid, DonationStatusExpired, DonationStatusCancelled, DonationStatusFailed:
		return true
	}
	return false
}

func (s DonationStatus) IsTerminal() bool {
	return s != DonationStatusPending
}

type PaymentMethod string

const PaymentMethodQRIS PaymentMethod = "qris"

func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodQRIS
}

const AnonymousDonorName = "Anonymous"

type Donation struct {
	ID                 uuid.UUID
	Reference          string
	ExternalID         string
	CampaignID         uuid.UUID
	DonorID            uuid.UUID
	Amount             int64
	Message            *string
	IsAnonymous        bool
	PaymentMethod      PaymentMethod
	Status             DonationStatus
	GatewayInvoiceID   string
	GatewayInvoiceURL  string
	ExpiresAt          time.Time
	PaidAt             *time.Time
	LastWebhookPayload json.RawMessage
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PublicDonation is a paid donation as shown on a campaign page. DonorName is
// AnonymousDonorName when the donor asked to stay hidden.
type PublicDonation struct {
	Reference string
	DonorName string
	Amount    int64
	Message   *string
	PaidAt    time.Time
}
