package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type WebhookKind string

const (
	WebhookKindInvoice      WebhookKind = "invoice"
	WebhookKindDisbursement WebhookKind = "disbursement"
)

type WebhookDelivery struct {
	ID          uuid.UUID
	Kind        WebhookKind
	ResourceRef string
	Outcome     string
	Payload     json.RawMessage
	ReceivedAt  time.Time
}
