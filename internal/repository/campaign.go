package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

const campaignColumns = `id, creator_id, title, goal_amount, current_amount,
	payout_amount, status, version, created_at, updated_at`

type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id,
	)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return c, nil
}

// GetFunding reads the campaign together with the sum of its pending and
// processing payouts in one statement, so both come from the same snapshot.
func (r *CampaignRepository) GetFunding(ctx context.Context, id uuid.UUID) (*domain.Campaign, int64, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+`,
			COALESCE((SELECT SUM(p.amount) FROM payouts p
				WHERE p.campaign_id = campaigns.id AND p.status IN ('pending', 'processing')), 0)
		FROM campaigns WHERE id = $1`, id,
	)

	var c domain.Campaign
	var outstanding int64
	err := row.Scan(
		&c.ID, &c.CreatorID, &c.Title, &c.GoalAmount, &c.CurrentAmount,
		&c.PayoutAmount, &c.Status, &c.Version, &c.CreatedAt, &c.UpdatedAt,
		&outstanding,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, fmt.Errorf("GetFunding: %w", domain.ErrNotFound)
		}
		return nil, 0, fmt.Errorf("GetFunding: %w", err)
	}
	return &c, outstanding, nil
}

func (r *CampaignRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Campaign, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, id,
	)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return c, nil
}

// UpdateAggregate persists c if the stored version is still c.Version-1.
func (r *CampaignRepository) UpdateAggregate(ctx context.Context, tx *sql.Tx, c *domain.Campaign) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE campaigns
		SET current_amount = $1, payout_amount = $2, status = $3, version = $4, updated_at = now()
		WHERE id = $5 AND version = $6`,
		c.CurrentAmount, c.PayoutAmount, c.Status, c.Version, c.ID, c.Version-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateAggregate: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateAggregate: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateAggregate: %w", domain.ErrVersionConflict)
	}
	return nil
}

func scanCampaign(s scanner) (*domain.Campaign, error) {
	var c domain.Campaign
	err := s.Scan(
		&c.ID, &c.CreatorID, &c.Title, &c.GoalAmount, &c.CurrentAmount,
		&c.PayoutAmount, &c.Status, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
