package donation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

// ApplyWebhook applies a processor invoice notification. Replays and events
// for donations that already left pending are reported as OutcomeIgnored.
func (s *Service) ApplyWebhook(ctx context.Context, ev domain.InvoiceEvent) (domain.Outcome, error) {
	outcome, err := s.apply(ctx, ev, domain.ActorGateway)
	if err != nil {
		return "", fmt.Errorf("ApplyWebhook: %w", err)
	}
	return outcome, nil
}

// Reconcile applies gateway state found by polling through the same path as a callback.
func (s *Service) Reconcile(ctx context.Context, ev domain.InvoiceEvent) (domain.Outcome, error) {
	outcome, err := s.apply(ctx, ev, domain.ActorReconciler)
	if err != nil {
		return "", fmt.Errorf("Reconcile: %w", err)
	}
	return outcome, nil
}

type applyResult struct {
	outcome           domain.Outcome
	donation          *domain.Donation
	campaignCompleted bool
}

func (s *Service) apply(ctx context.Context, ev domain.InvoiceEvent, actor string) (domain.Outcome, error) {
	log := logging.FromContext(ctx)

	var res applyResult
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		res = applyResult{outcome: domain.OutcomeIgnored}

		d, err := s.donations.GetByExternalIDForUpdate(ctx, tx, ev.ExternalID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrDonationNotFound
			}
			return err
		}
		res.donation = d

		if d.Status.IsTerminal() {
			return nil
		}

		switch ev.Status {
		case domain.DonationStatusPaid:
			completed, err := s.markPaid(ctx, tx, d, ev, actor)
			if err != nil {
				return err
			}
			res.campaignCompleted = completed
		case domain.DonationStatusExpired, domain.DonationStatusFailed:
			if err := s.markClosed(ctx, tx, d, ev, actor); err != nil {
				return err
			}
		default:
			return nil
		}

		res.outcome = domain.OutcomeApplied
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyTerminal) {
			log.Info("donation left pending during processing", "external_id", ev.ExternalID)
			return domain.OutcomeIgnored, nil
		}
		return "", err
	}

	d := res.donation
	if res.outcome == domain.OutcomeIgnored {
		log.Info("invoice event ignored",
			"reference", d.Reference,
			"donation_status", d.Status,
			"event_status", ev.Status,
		)
		return res.outcome, nil
	}

	log.Info("invoice event applied",
		"reference", d.Reference,
		"campaign_id", d.CampaignID,
		"status", ev.Status,
		"amount", d.Amount,
		"actor", actor,
	)
	if res.campaignCompleted {
		log.Info("campaign reached its goal", "campaign_id", d.CampaignID)
	}
	return res.outcome, nil
}

// markPaid credits the campaign in the same transaction as the status change.
// It reports whether this credit completed the campaign.
func (s *Service) markPaid(ctx context.Context, tx *sql.Tx, d *domain.Donation, ev domain.InvoiceEvent, actor string) (bool, error) {
	now := time.Now().UTC()
	paidAt := now
	if ev.PaidAt != nil {
		paidAt = ev.PaidAt.UTC()
	}

	campaign, err := s.campaigns.GetForUpdate(ctx, tx, d.CampaignID)
	if err != nil {
		return false, fmt.Errorf("markPaid: %w", err)
	}

	if err := s.donations.TransitionFromPending(ctx, tx, d.ID, domain.DonationStatusPaid, &paidAt, ev.Raw); err != nil {
		return false, fmt.Errorf("markPaid: %w", err)
	}

	next := campaign.Credit(d.Amount)
	if err := s.campaigns.UpdateAggregate(ctx, tx, &next); err != nil {
		return false, fmt.Errorf("markPaid: %w", err)
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		CampaignID:    campaign.ID,
		SourceType:    domain.SourceTypeDonation,
		SourceID:      d.ID,
		EntryType:     domain.EntryTypeCredit,
		Amount:        d.Amount,
		BalanceBefore: campaign.CurrentAmount,
		BalanceAfter:  next.CurrentAmount,
		CreatedAt:     now,
	}
	if err := s.ledger.Create(ctx, tx, entry); err != nil {
		return false, fmt.Errorf("markPaid: ledger: %w", err)
	}

	if err := s.writeEvent(ctx, tx, d.ID, domain.LifecycleEventPaid, actor, ev.Raw, now); err != nil {
		return false, fmt.Errorf("markPaid: %w", err)
	}

	d.Status = domain.DonationStatusPaid
	d.PaidAt = &paidAt
	return campaign.Status != next.Status, nil
}

func (s *Service) markClosed(ctx context.Context, tx *sql.Tx, d *domain.Donation, ev domain.InvoiceEvent, actor string) error {
	if err := s.donations.TransitionFromPending(ctx, tx, d.ID, ev.Status, nil, ev.Raw); err != nil {
		return fmt.Errorf("markClosed: %w", err)
	}

	eventType := domain.LifecycleEventFailed
	if ev.Status == domain.DonationStatusExpired {
		eventType = domain.LifecycleEventExpired
	}
	if err := s.writeEvent(ctx, tx, d.ID, eventType, actor, ev.Raw, time.Now().UTC()); err != nil {
		return fmt.Errorf("markClosed: %w", err)
	}

	d.Status = ev.Status
	return nil
}
