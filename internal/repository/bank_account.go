package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

type BankAccountRepository struct {
	db *sql.DB
}

func NewBankAccountRepository(db *sql.DB) *BankAccountRepository {
	return &BankAccountRepository{db: db}
}

// GetEntryForOwner looks up a bank entry only if it belongs to ownerID's bank account.
func (r *BankAccountRepository) GetEntryForOwner(ctx context.Context, ownerID, entryID uuid.UUID) (*domain.BankEntry, error) {
	var e domain.BankEntry
	err := r.db.QueryRowContext(ctx,
		`SELECT e.id, e.bank_account_id, e.bank_code, e.account_number, e.holder_name
		FROM bank_entries e JOIN bank_accounts a ON a.id = e.bank_account_id
		WHERE e.id = $1 AND a.owner_id = $2`,
		entryID, ownerID,
	).Scan(&e.ID, &e.BankAccountID, &e.BankCode, &e.AccountNumber, &e.HolderName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetEntryForOwner: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetEntryForOwner: %w", err)
	}
	return &e, nil
}
