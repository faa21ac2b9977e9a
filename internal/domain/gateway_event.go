package domain

import (
	"encoding/json"
	"time"
)

// GatewayEvent is a normalized processor notification. It is either an
// InvoiceEvent or a DisbursementEvent.
type GatewayEvent interface {
	gatewayEvent()
}

type InvoiceEvent struct {
	ExternalID string
	InvoiceID  string
	Status     DonationStatus
	PaidAt     *time.Time
	Raw        json.RawMessage
}

func (InvoiceEvent) gatewayEvent() {}

type DisbursementEvent struct {
	DisbursementID string
	ExternalID     string
	Status         PayoutStatus
	FailureCode    string
	Raw            json.RawMessage
}

func (DisbursementEvent) gatewayEvent() {}

// Outcome reports what applying a GatewayEvent did.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeIgnored Outcome = "ignored"
)
