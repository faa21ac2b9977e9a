package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

const payoutLockNamespace = 7301

// CampaignLocker serializes payout creation per campaign with a session-level
// advisory lock. It never touches the campaign row, so webhook crediting is
// not blocked while a disbursement request is in flight.
type CampaignLocker struct {
	db *sql.DB
}

func NewCampaignLocker(db *sql.DB) *CampaignLocker {
	return &CampaignLocker{db: db}
}

func (l *CampaignLocker) TryLock(ctx context.Context, campaignID uuid.UUID) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("TryLock: conn: %w", err)
	}

	var acquired bool
	err = conn.QueryRowContext(ctx,
		`SELECT pg_try_advisory_lock($1, hashtext($2))`,
		payoutLockNamespace, campaignID.String(),
	).Scan(&acquired)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("TryLock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, fmt.Errorf("TryLock: %w", domain.ErrPayoutInProgress)
	}

	unlock := func() {
		ctx := context.WithoutCancel(ctx)
		var released bool
		err := conn.QueryRowContext(ctx,
			`SELECT pg_advisory_unlock($1, hashtext($2))`,
			payoutLockNamespace, campaignID.String(),
		).Scan(&released)
		if err != nil || !released {
			logging.FromContext(ctx).Error("failed to release payout lock, discarding connection",
				"campaign_id", campaignID, "released", released, "error", err)
			// a pooled session would keep holding the lock
			conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		conn.Close()
	}
	return unlock, nil
}
