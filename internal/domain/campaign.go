package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CampaignStatus string

const (
	CampaignStatusFundraising CampaignStatus = "fundraising"
	CampaignStatusCompleted   CampaignStatus = "completed"
)

type Campaign struct {
	ID            uuid.UUID
	CreatorID     uuid.UUID
	Title         string
	GoalAmount    int64
	CurrentAmount int64
	PayoutAmount  int64
	Status        CampaignStatus
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Credit returns the aggregate after a paid donation. Completion is sticky.
func (c Campaign) Credit(amount int64) Campaign {
	next := c
	next.CurrentAmount += amount
	if next.CurrentAmount >= next.GoalAmount {
		next.Status = CampaignStatusCompleted
	}
	next.Version++
	return next
}

// Debit returns the aggregate after a completed payout.
func (c Campaign) Debit(amount int64) Campaign {
	next := c
	next.CurrentAmount -= amount
	next.PayoutAmount += amount
	next.Version++
	return next
}

type FundingSummary struct {
	CampaignID    uuid.UUID
	GoalAmount    int64
	CurrentAmount int64
	PayoutAmount  int64
	Outstanding   int64
	Withdrawable  int64
	Status        CampaignStatus
	// ProgressPercent is everything ever raised (held plus paid out) over
	// goal, rounded to two places.
	ProgressPercent decimal.Decimal
}

// Summarize builds the funding view of c given the sum of outstanding payouts.
func (c Campaign) Summarize(outstanding int64) FundingSummary {
	progress := decimal.Zero
	if c.GoalAmount > 0 {
		progress = decimal.NewFromInt(c.CurrentAmount + c.PayoutAmount).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(c.GoalAmount)).
			Round(2)
	}
	return FundingSummary{
		CampaignID:      c.ID,
		GoalAmount:      c.GoalAmount,
		CurrentAmount:   c.CurrentAmount,
		PayoutAmount:    c.PayoutAmount,
		Outstanding:     outstanding,
		Withdrawable:    max(c.CurrentAmount-outstanding, 0),
		Status:          c.Status,
		ProgressPercent: progress,
	}
}
