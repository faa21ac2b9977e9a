package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusFailed
}

type Payout struct {
	ID                    uuid.UUID
	ExternalID            string
	CampaignID            uuid.UUID
	BankEntryID           uuid.UUID
	RequestedBy           uuid.UUID
	Amount                int64
	Status                PayoutStatus
	GatewayDisbursementID string
	FailureReason         *string
	RequestedAt           time.Time
	CompletedAt           *time.Time
	LastWebhookPayload    json.RawMessage
	UpdatedAt             time.Time
}
