package payout

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

type CreateRequest struct {
	CampaignID  uuid.UUID
	BankEntryID uuid.UUID
	RequesterID uuid.UUID
	Amount      int64
}

// Create requests a disbursement of raised funds to one of the creator's bank
// entries. Only one creation per campaign runs at a time; a concurrent request
// fails with domain.ErrPayoutInProgress instead of waiting.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Payout, error) {
	log := logging.FromContext(ctx)

	if req.Amount <= 0 {
		return nil, fmt.Errorf("Create: %w", domain.ErrInvalidAmount)
	}

	campaign, err := s.campaigns.GetByID(ctx, req.CampaignID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Create: %w", domain.ErrCampaignNotFound)
		}
		return nil, fmt.Errorf("Create: %w", err)
	}
	if campaign.CreatorID != req.RequesterID {
		return nil, fmt.Errorf("Create: %w", domain.ErrForbidden)
	}

	entry, err := s.banks.GetEntryForOwner(ctx, req.RequesterID, req.BankEntryID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Create: %w", domain.ErrBankEntryNotFound)
		}
		return nil, fmt.Errorf("Create: %w", err)
	}

	unlock, err := s.locker.TryLock(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	defer unlock()

	summary, err := s.fundingSummary(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if req.Amount > summary.Withdrawable {
		return nil, fmt.Errorf("Create: requested %d, withdrawable %d: %w",
			req.Amount, summary.Withdrawable, domain.ErrInsufficientBalance)
	}

	now := time.Now().UTC()
	externalID, err := newExternalID(now, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	disb, err := s.gateway.CreateDisbursement(ctx, gateway.DisbursementRequest{
		ExternalID:    externalID,
		Amount:        req.Amount,
		BankCode:      entry.BankCode,
		AccountNumber: entry.AccountNumber,
		HolderName:    entry.HolderName,
		Description:   "Payout for " + campaign.Title,
	})
	if err != nil {
		log.Warn("disbursement creation failed", "campaign_id", campaign.ID, "external_id", externalID, "error", err)
		return nil, fmt.Errorf("Create: %w", err)
	}

	p := &domain.Payout{
		ID:                    uuid.New(),
		ExternalID:            externalID,
		CampaignID:            campaign.ID,
		BankEntryID:           entry.ID,
		RequestedBy:           req.RequesterID,
		Amount:                req.Amount,
		Status:                domain.PayoutStatusPending,
		GatewayDisbursementID: disb.ID,
		RequestedAt:           now,
		UpdatedAt:             now,
	}

	payload, _ := json.Marshal(map[string]string{"disbursement_id": disb.ID})
	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.payouts.Create(ctx, tx, p); err != nil {
			return fmt.Errorf("create payout: %w", err)
		}
		return s.writeEvent(ctx, tx, p.ID, domain.LifecycleEventCreated, "creator:"+req.RequesterID.String(), payload, now)
	})
	if err != nil {
		log.Error("payout persist failed after disbursement creation, reconcile manually",
			"campaign_id", campaign.ID,
			"external_id", externalID,
			"disbursement_id", disb.ID,
			"amount", req.Amount,
			"error", err,
		)
		return nil, fmt.Errorf("Create: %w", err)
	}

	log.Info("payout requested",
		"payout_id", p.ID,
		"campaign_id", campaign.ID,
		"amount", req.Amount,
		"disbursement_id", disb.ID,
	)
	return p, nil
}

// newExternalID builds PAY_<unix ms>_<8 uppercase hex>_<campaign id>.
func newExternalID(now time.Time, campaignID uuid.UUID) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("newExternalID: %w", err)
	}
	return fmt.Sprintf("PAY_%d_%s_%s", now.UnixMilli(), strings.ToUpper(hex.EncodeToString(b)), campaignID), nil
}
