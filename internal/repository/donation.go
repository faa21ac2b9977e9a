package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

const donationColumns = `id, reference, external_id, campaign_id, donor_id, amount,
	message, is_anonymous, payment_method, status, gateway_invoice_id,
	gateway_invoice_url, expires_at, paid_at, last_webhook_payload,
	created_at, updated_at`

type DonationRepository struct {
	db *sql.DB
}

func NewDonationRepository(db *sql.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Create(ctx context.Context, tx *sql.Tx, d *domain.Donation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO donations (
			id, reference, external_id, campaign_id, donor_id, amount,
			message, is_anonymous, payment_method, status, gateway_invoice_id,
			gateway_invoice_url, expires_at, paid_at, last_webhook_payload,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17
		)`,
		d.ID, d.Reference, d.ExternalID, d.CampaignID, d.DonorID, d.Amount,
		d.Message, d.IsAnonymous, d.PaymentMethod, d.Status, d.GatewayInvoiceID,
		d.GatewayInvoiceURL, d.ExpiresAt, d.PaidAt, jsonArg(d.LastWebhookPayload),
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *DonationRepository) GetByReference(ctx context.Context, reference string) (*domain.Donation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE reference = $1`, reference,
	)
	d, err := scanDonation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	return d, nil
}

func (r *DonationRepository) GetByExternalIDForUpdate(ctx context.Context, tx *sql.Tx, externalID string) (*domain.Donation, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE external_id = $1 FOR UPDATE`, externalID,
	)
	d, err := scanDonation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByExternalIDForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByExternalIDForUpdate: %w", err)
	}
	return d, nil
}

// TransitionFromPending moves a pending donation to status. It returns
// domain.ErrAlreadyTerminal when the donation has left pending in the meantime.
func (r *DonationRepository) TransitionFromPending(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.DonationStatus, paidAt *time.Time, payload []byte) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE donations
		SET status = $1, paid_at = $2,
			last_webhook_payload = COALESCE($3::jsonb, last_webhook_payload),
			updated_at = now()
		WHERE id = $4 AND status = 'pending'`,
		status, paidAt, jsonArg(payload), id,
	)
	if err != nil {
		return fmt.Errorf("TransitionFromPending: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("TransitionFromPending: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("TransitionFromPending: %w", domain.ErrAlreadyTerminal)
	}
	return nil
}

func (r *DonationRepository) ListByDonor(ctx context.Context, donorID uuid.UUID, status *domain.DonationStatus, limit, offset int) ([]domain.Donation, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM donations
		WHERE donor_id = $1 AND ($2::text IS NULL OR status = $2)`,
		donorID, status,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByDonor: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+donationColumns+` FROM donations
		WHERE donor_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		donorID, status, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByDonor: %w", err)
	}
	defer rows.Close()

	donations, err := collectDonations(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByDonor: %w", err)
	}
	return donations, total, nil
}

func (r *DonationRepository) ListPaidByCampaign(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]domain.PublicDonation, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM donations WHERE campaign_id = $1 AND status = 'paid'`, campaignID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListPaidByCampaign: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT d.reference, d.is_anonymous, u.name, d.amount, d.message, d.paid_at
		FROM donations d JOIN users u ON u.id = d.donor_id
		WHERE d.campaign_id = $1 AND d.status = 'paid'
		ORDER BY d.paid_at DESC LIMIT $2 OFFSET $3`,
		campaignID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListPaidByCampaign: %w", err)
	}
	defer rows.Close()

	var out []domain.PublicDonation
	for rows.Next() {
		var p domain.PublicDonation
		var anonymous bool
		var name string
		if err := rows.Scan(&p.Reference, &anonymous, &name, &p.Amount, &p.Message, &p.PaidAt); err != nil {
			return nil, 0, fmt.Errorf("ListPaidByCampaign: scan: %w", err)
		}
		p.DonorName = name
		if anonymous {
			p.DonorName = domain.AnonymousDonorName
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListPaidByCampaign: rows: %w", err)
	}
	return out, total, nil
}

// ListStalePending returns pending donations whose invoice expired before cutoff.
func (r *DonationRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Donation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+donationColumns+` FROM donations
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListStalePending: %w", err)
	}
	defer rows.Close()

	donations, err := collectDonations(rows)
	if err != nil {
		return nil, fmt.Errorf("ListStalePending: %w", err)
	}
	return donations, nil
}

func collectDonations(rows *sql.Rows) ([]domain.Donation, error) {
	var donations []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		donations = append(donations, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return donations, nil
}

func scanDonation(s scanner) (*domain.Donation, error) {
	var d domain.Donation
	var payload []byte

	err := s.Scan(
		&d.ID, &d.Reference, &d.ExternalID, &d.CampaignID, &d.DonorID, &d.Amount,
		&d.Message, &d.IsAnonymous, &d.PaymentMethod, &d.Status, &d.GatewayInvoiceID,
		&d.GatewayInvoiceURL, &d.ExpiresAt, &d.PaidAt, &payload,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if payload != nil {
		d.LastWebhookPayload = payload
	}
	return &d, nil
}
