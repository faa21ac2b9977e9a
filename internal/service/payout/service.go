package payout

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/config"
	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
	"github.com/josh-kwaku/crowdfund-payments/internal/notify"
)

type payoutRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.Payout) error
	GetByDisbursementIDForUpdate(ctx context.Context, tx *sql.Tx, disbursementID string) (*domain.Payout, error)
	Transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, from []domain.PayoutStatus, to domain.PayoutStatus, failureReason *string, completedAt *time.Time, payload []byte) error
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.Payout, error)
}

type campaignRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	GetFunding(ctx context.Context, id uuid.UUID) (*domain.Campaign, int64, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Campaign, error)
	UpdateAggregate(ctx context.Context, tx *sql.Tx, c *domain.Campaign) error
}

type bankAccountRepo interface {
	GetEntryForOwner(ctx context.Context, ownerID, entryID uuid.UUID) (*domain.BankEntry, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type ledgerRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.LifecycleEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type campaignLocker interface {
	TryLock(ctx context.Context, campaignID uuid.UUID) (func(), error)
}

type disbursementGateway interface {
	CreateDisbursement(ctx context.Context, req gateway.DisbursementRequest) (*gateway.Disbursement, error)
}

type notifier interface {
	NotifyPayoutCompleted(ctx context.Context, event notify.PayoutCompleted) error
}

type Service struct {
	payouts   payoutRepo
	campaigns campaignRepo
	banks     bankAccountRepo
	users     userRepo
	ledger    ledgerRepo
	events    eventRepo
	tx        txRunner
	locker    campaignLocker
	gateway   disbursementGateway
	notifier  notifier
	config    *config.Config
}

type Deps struct {
	Payouts   payoutRepo
	Campaigns campaignRepo
	Banks     bankAccountRepo
	Users     userRepo
	Ledger    ledgerRepo
	Events    eventRepo
	Tx        txRunner
	Locker    campaignLocker
	Gateway   disbursementGateway
	Notifier  notifier
}

func NewService(deps Deps, cfg *config.Config) *Service {
	return &Service{
		payouts:   deps.Payouts,
		campaigns: deps.Campaigns,
		banks:     deps.Banks,
		users:     deps.Users,
		ledger:    deps.Ledger,
		events:    deps.Events,
		tx:        deps.Tx,
		locker:    deps.Locker,
		gateway:   deps.Gateway,
		notifier:  deps.Notifier,
		config:    cfg,
	}
}

func (s *Service) writeEvent(ctx context.Context, tx *sql.Tx, payoutID uuid.UUID, eventType domain.LifecycleEventType, actor string, payload []byte, now time.Time) error {
	event := &domain.LifecycleEvent{
		ID:          uuid.New(),
		SubjectType: domain.SourceTypePayout,
		SubjectID:   payoutID,
		EventType:   eventType,
		Actor:       actor,
		Payload:     payload,
		CreatedAt:   now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("writeEvent: %w", err)
	}
	return nil
}
