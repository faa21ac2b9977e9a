package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

const ledgerColumns = `id, campaign_id, source_type, source_id, entry_type, amount,
	balance_before, balance_after, created_at`

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO campaign_ledger_entries (
			id, campaign_id, source_type, source_id, entry_type, amount,
			balance_before, balance_after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.CampaignID, entry.SourceType, entry.SourceID, entry.EntryType,
		entry.Amount, entry.BalanceBefore, entry.BalanceAfter, entry.CreatedAt,
	)
	if err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("Create: %s %s already posted: %w", entry.SourceType, entry.SourceID, domain.ErrAlreadyTerminal)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetByCampaignID(ctx context.Context, campaignID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM campaign_ledger_entries
		WHERE campaign_id = $1 ORDER BY created_at, id`, campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByCampaignID: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByCampaignID: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByCampaignID: rows: %w", err)
	}
	return entries, nil
}

// Totals sums credits and debits posted for a campaign.
func (r *LedgerRepository) Totals(ctx context.Context, campaignID uuid.UUID) (credits, debits int64, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'credit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'debit'), 0)
		FROM campaign_ledger_entries WHERE campaign_id = $1`, campaignID,
	).Scan(&credits, &debits)
	if err != nil {
		return 0, 0, fmt.Errorf("Totals: %w", err)
	}
	return credits, debits, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := s.Scan(
		&e.ID, &e.CampaignID, &e.SourceType, &e.SourceID, &e.EntryType,
		&e.Amount, &e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
