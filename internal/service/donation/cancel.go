package donation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

// Cancel expires the donor's open invoice and marks the donation cancelled.
// An invoice the processor no longer knows counts as expired.
func (s *Service) Cancel(ctx context.Context, reference string, donorID uuid.UUID) (*domain.Donation, error) {
	log := logging.FromContext(ctx)

	d, err := s.donations.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Cancel: %w", domain.ErrDonationNotFound)
		}
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	if d.DonorID != donorID {
		return nil, fmt.Errorf("Cancel: %w", domain.ErrForbidden)
	}
	if d.Status != domain.DonationStatusPending {
		return nil, fmt.Errorf("Cancel: %w", &domain.DonationStateError{Status: d.Status})
	}

	if err := s.gateway.ExpireInvoice(ctx, d.GatewayInvoiceID); err != nil {
		if !errors.Is(err, gateway.ErrInvoiceNotFound) {
			log.Warn("invoice expiry failed, donation stays pending", "reference", reference, "error", err)
			return nil, fmt.Errorf("Cancel: %w", err)
		}
		log.Info("invoice unknown at gateway, cancelling locally", "reference", reference, "invoice_id", d.GatewayInvoiceID)
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.donations.TransitionFromPending(ctx, tx, d.ID, domain.DonationStatusCancelled, nil, nil); err != nil {
			return err
		}
		return s.writeEvent(ctx, tx, d.ID, domain.LifecycleEventCancelled, "donor:"+donorID.String(), nil, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyTerminal) {
			return nil, fmt.Errorf("Cancel: %w", s.stateError(ctx, reference))
		}
		return nil, fmt.Errorf("Cancel: %w", err)
	}

	d.Status = domain.DonationStatusCancelled
	d.UpdatedAt = now
	log.Info("donation cancelled", "reference", reference, "donation_id", d.ID)
	return d, nil
}

// stateError re-reads a donation that left pending under a concurrent
// writer so the caller learns where it ended up.
func (s *Service) stateError(ctx context.Context, reference string) error {
	current, err := s.donations.GetByReference(ctx, reference)
	if err != nil {
		logging.FromContext(ctx).Warn("failed to re-read donation state", "reference", reference, "error", err)
		return domain.ErrDonationNotPending
	}
	return &domain.DonationStateError{Status: current.Status}
}
