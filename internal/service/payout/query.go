package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

// ListForCampaign returns the campaign's payouts. Only the creator may list them.
func (s *Service) ListForCampaign(ctx context.Context, campaignID, requesterID uuid.UUID) ([]domain.Payout, error) {
	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("ListForCampaign: %w", domain.ErrCampaignNotFound)
		}
		return nil, fmt.Errorf("ListForCampaign: %w", err)
	}
	if campaign.CreatorID != requesterID {
		return nil, fmt.Errorf("ListForCampaign: %w", domain.ErrForbidden)
	}

	payouts, err := s.payouts.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("ListForCampaign: %w", err)
	}
	return payouts, nil
}

func (s *Service) FundingSummary(ctx context.Context, campaignID uuid.UUID) (*domain.FundingSummary, error) {
	summary, err := s.fundingSummary(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("FundingSummary: %w", err)
	}
	return summary, nil
}

// fundingSummary must see the aggregate and outstanding payouts from one
// snapshot, or a completion landing in between is counted in neither.
func (s *Service) fundingSummary(ctx context.Context, campaignID uuid.UUID) (*domain.FundingSummary, error) {
	campaign, outstanding, err := s.campaigns.GetFunding(ctx, campaignID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, err
	}

	summary := campaign.Summarize(outstanding)
	return &summary, nil
}
