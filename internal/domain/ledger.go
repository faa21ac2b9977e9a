package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

type SourceType string

const (
	SourceTypeDonation SourceType = "donation"
	SourceTypePayout   SourceType = "payout"
)

// LedgerEntry records one movement of a campaign's current amount. Each
// donation or payout contributes at most one entry.
type LedgerEntry struct {
	ID            uuid.UUID
	CampaignID    uuid.UUID
	SourceType    SourceType
	SourceID      uuid.UUID
	EntryType     EntryType
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	CreatedAt     time.Time
}
