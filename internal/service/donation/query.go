package donation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func (s *Service) Get(ctx context.Context, reference string) (*domain.Donation, error) {
	d, err := s.donations.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Get: %w", domain.ErrDonationNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return d, nil
}

// History lists a donor's donations, newest first. page is 1-based.
func (s *Service) History(ctx context.Context, donorID uuid.UUID, status *domain.DonationStatus, page, limit int) ([]domain.Donation, int, error) {
	if status != nil && !status.IsValid() {
		return nil, 0, fmt.Errorf("History: status %q: %w", *status, domain.ErrInvalidRequest)
	}

	limit, offset := pageBounds(page, limit)
	donations, total, err := s.donations.ListByDonor(ctx, donorID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("History: %w", err)
	}
	return donations, total, nil
}

// CampaignDonations lists paid donations of a campaign, most recently paid first.
func (s *Service) CampaignDonations(ctx context.Context, campaignID uuid.UUID, page, limit int) ([]domain.PublicDonation, int, error) {
	if _, err := s.campaigns.GetByID(ctx, campaignID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, fmt.Errorf("CampaignDonations: %w", domain.ErrCampaignNotFound)
		}
		return nil, 0, fmt.Errorf("CampaignDonations: %w", err)
	}

	limit, offset := pageBounds(page, limit)
	donations, total, err := s.donations.ListPaidByCampaign(ctx, campaignID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("CampaignDonations: %w", err)
	}
	return donations, total, nil
}

func pageBounds(page, limit int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	page = max(page, 1)
	return limit, (page - 1) * limit
}
