package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

const payoutColumns = `id, external_id, campaign_id, bank_entry_id, requested_by, amount,
	status, gateway_disbursement_id, failure_reason, requested_at, completed_at,
	last_webhook_payload, updated_at`

type PayoutRepository struct {
	db *sql.DB
}

func NewPayoutRepository(db *sql.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Payout) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payouts (
			id, external_id, campaign_id, bank_entry_id, requested_by, amount,
			status, gateway_disbursement_id, failure_reason, requested_at, completed_at,
			last_webhook_payload, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.ExternalID, p.CampaignID, p.BankEntryID, p.RequestedBy, p.Amount,
		p.Status, p.GatewayDisbursementID, p.FailureReason, p.RequestedAt, p.CompletedAt,
		jsonArg(p.LastWebhookPayload), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PayoutRepository) GetByDisbursementIDForUpdate(ctx context.Context, tx *sql.Tx, disbursementID string) (*domain.Payout, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE gateway_disbursement_id = $1 FOR UPDATE`, disbursementID,
	)
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByDisbursementIDForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByDisbursementIDForUpdate: %w", err)
	}
	return p, nil
}

// Transition moves a payout to status if it is currently in one of from.
// It returns domain.ErrAlreadyTerminal when no row matched.
func (r *PayoutRepository) Transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, from []domain.PayoutStatus, to domain.PayoutStatus, failureReason *string, completedAt *time.Time, payload []byte) error {
	fromValues := make([]string, len(from))
	for i, s := range from {
		fromValues[i] = string(s)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE payouts
		SET status = $1, failure_reason = $2, completed_at = $3,
			last_webhook_payload = COALESCE($4::jsonb, last_webhook_payload),
			updated_at = now()
		WHERE id = $5 AND status = ANY($6)`,
		to, failureReason, completedAt, jsonArg(payload), id, pq.Array(fromValues),
	)
	if err != nil {
		return fmt.Errorf("Transition: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Transition: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Transition: %w", domain.ErrAlreadyTerminal)
	}
	return nil
}

func (r *PayoutRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.Payout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE campaign_id = $1 ORDER BY requested_at DESC`, campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByCampaign: %w", err)
	}
	defer rows.Close()

	payouts, err := collectPayouts(rows)
	if err != nil {
		return nil, fmt.Errorf("ListByCampaign: %w", err)
	}
	return payouts, nil
}

// ListStaleOutstanding returns in-flight payouts requested before cutoff.
func (r *PayoutRepository) ListStaleOutstanding(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts
		WHERE status IN ('pending', 'processing') AND requested_at < $1
		ORDER BY requested_at LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListStaleOutstanding: %w", err)
	}
	defer rows.Close()

	payouts, err := collectPayouts(rows)
	if err != nil {
		return nil, fmt.Errorf("ListStaleOutstanding: %w", err)
	}
	return payouts, nil
}

func collectPayouts(rows *sql.Rows) ([]domain.Payout, error) {
	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		payouts = append(payouts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return payouts, nil
}

func scanPayout(s scanner) (*domain.Payout, error) {
	var p domain.Payout
	var payload []byte

	err := s.Scan(
		&p.ID, &p.ExternalID, &p.CampaignID, &p.BankEntryID, &p.RequestedBy, &p.Amount,
		&p.Status, &p.GatewayDisbursementID, &p.FailureReason, &p.RequestedAt, &p.CompletedAt,
		&payload, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if payload != nil {
		p.LastWebhookPayload = payload
	}
	return &p, nil
}
