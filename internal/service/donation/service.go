package donation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/config"
	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
)

type donationRepo interface {
	Create(ctx context.Context, tx *sql.Tx, d *domain.Donation) error
	GetByReference(ctx context.Context, reference string) (*domain.Donation, error)
	GetByExternalIDForUpdate(ctx context.Context, tx *sql.Tx, externalID string) (*domain.Donation, error)
	TransitionFromPending(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.DonationStatus, paidAt *time.Time, payload []byte) error
	ListByDonor(ctx context.Context, donorID uuid.UUID, status *domain.DonationStatus, limit, offset int) ([]domain.Donation, int, error)
	ListPaidByCampaign(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]domain.PublicDonation, int, error)
}

type campaignRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Campaign, error)
	UpdateAggregate(ctx context.Context, tx *sql.Tx, c *domain.Campaign) error
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

type invoiceGateway interface {
	CreateInvoice(ctx context.Context, req gateway.InvoiceRequest) (*gateway.Invoice, error)
	ExpireInvoice(ctx context.Context, invoiceID string) error
}

type Service struct {
	donations donationRepo
	campaigns campaignRepo
	users     userRepo
	ledger    ledgerRepo
	events    eventRepo
	tx        txRunner
	gateway   invoiceGateway
	config    *config.Config
}

func NewService(
	donations donationRepo,
	campaigns campaignRepo,
	users userRepo,
	ledger ledgerRepo,
	events eventRepo,
	tx txRunner,
	gw invoiceGateway,
	cfg *config.Config,
) *Service {
	return &Service{
		donations: donations,
		campaigns: campaigns,
		users:     users,
		ledger:    ledger,
		events:    events,
		tx:        tx,
		gateway:   gw,
		config:    cfg,
	}
}

func (s *Service) writeEvent(ctx context.Context, tx *sql.Tx, donationID uuid.UUID, eventType domain.LifecycleEventType, actor string, payload []byte, now time.Time) error {
	event := &domain.LifecycleEvent{
		ID:          uuid.New(),
		SubjectType: domain.SourceTypeDonation,
		SubjectID:   donationID,
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
