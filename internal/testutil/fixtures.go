package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

func SeedUser(t *testing.T, db *sql.DB, email, name string, role domain.UserRole) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func SeedCampaign(t *testing.T, db *sql.DB, creatorID uuid.UUID, title string, goal, current int64) *domain.Campaign {
	t.Helper()

	status := domain.CampaignStatusFundraising
	if current >= goal {
		status = domain.CampaignStatusCompleted
	}

	c := &domain.Campaign{
		ID:            uuid.New(),
		CreatorID:     creatorID,
		Title:         title,
		GoalAmount:    goal,
		CurrentAmount: current,
		Status:        status,
		Version:       1,
	}
	err := db.QueryRow(
		`INSERT INTO campaigns (id, creator_id, title, goal_amount, current_amount, status, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		c.ID, c.CreatorID, c.Title, c.GoalAmount, c.CurrentAmount, c.Status, c.Version,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		t.Fatalf("seed campaign %s: %v", title, err)
	}
	return c
}

func SeedBankEntry(t *testing.T, db *sql.DB, ownerID uuid.UUID, bankCode, accountNumber, holderName string) *domain.BankEntry {
	t.Helper()

	var accountID uuid.UUID
	err := db.QueryRow(
		`INSERT INTO bank_accounts (id, owner_id) VALUES ($1, $2)
		 ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
		 RETURNING id`,
		uuid.New(), ownerID,
	).Scan(&accountID)
	if err != nil {
		t.Fatalf("seed bank account: %v", err)
	}

	e := &domain.BankEntry{
		ID:            uuid.New(),
		BankAccountID: accountID,
		BankCode:      bankCode,
		AccountNumber: accountNumber,
		HolderName:    holderName,
	}
	_, err = db.Exec(
		`INSERT INTO bank_entries (id, bank_account_id, bank_code, account_number, holder_name)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.BankAccountID, e.BankCode, e.AccountNumber, e.HolderName,
	)
	if err != nil {
		t.Fatalf("seed bank entry: %v", err)
	}
	return e
}

func GetCampaign(t *testing.T, db *sql.DB, id uuid.UUID) *domain.Campaign {
	t.Helper()

	var c domain.Campaign
	err := db.QueryRow(
		`SELECT id, creator_id, title, goal_amount, current_amount, payout_amount, status, version
		 FROM campaigns WHERE id = $1`, id,
	).Scan(&c.ID, &c.CreatorID, &c.Title, &c.GoalAmount, &c.CurrentAmount, &c.PayoutAmount, &c.Status, &c.Version)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	return &c
}

func GetDonationStatus(t *testing.T, db *sql.DB, reference string) (domain.DonationStatus, *time.Time) {
	t.Helper()

	var status domain.DonationStatus
	var paidAt *time.Time
	err := db.QueryRow(
		`SELECT status, paid_at FROM donations WHERE reference = $1`, reference,
	).Scan(&status, &paidAt)
	if err != nil {
		t.Fatalf("get donation status: %v", err)
	}
	return status, paidAt
}

func GetPayoutStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.PayoutStatus {
	t.Helper()

	var status domain.PayoutStatus
	if err := db.QueryRow(`SELECT status FROM payouts WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("get payout status: %v", err)
	}
	return status
}

func CountDonations(t *testing.T, db *sql.DB, campaignID uuid.UUID) int {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM donations WHERE campaign_id = $1`, campaignID).Scan(&count); err != nil {
		t.Fatalf("count donations: %v", err)
	}
	return count
}

func CountPayouts(t *testing.T, db *sql.DB, campaignID uuid.UUID) int {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM payouts WHERE campaign_id = $1`, campaignID).Scan(&count); err != nil {
		t.Fatalf("count payouts: %v", err)
	}
	return count
}

func CountLedgerEntries(t *testing.T, db *sql.DB, campaignID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM campaign_ledger_entries WHERE campaign_id = $1`, campaignID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries: %v", err)
	}
	return count
}
