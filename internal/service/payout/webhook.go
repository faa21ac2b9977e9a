package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
	"github.com/josh-kwaku/crowdfund-payments/internal/notify"
)

const unknownFailureCode = "UNKNOWN"

// ApplyWebhook applies a processor disbursement notification.
func (s *Service) ApplyWebhook(ctx context.Context, ev domain.DisbursementEvent) (domain.Outcome, error) {
	outcome, err := s.apply(ctx, ev, domain.ActorGateway)
	if err != nil {
		return "", fmt.Errorf("ApplyWebhook: %w", err)
	}
	return outcome, nil
}

func (s *Service) Reconcile(ctx context.Context, ev domain.DisbursementEvent) (domain.Outcome, error) {
	outcome, err := s.apply(ctx, ev, domain.ActorReconciler)
	if err != nil {
		return "", fmt.Errorf("Reconcile: %w", err)
	}
	return outcome, nil
}

type applyResult struct {
	outcome  domain.Outcome
	payout   *domain.Payout
	campaign *domain.Campaign
}

func (s *Service) apply(ctx context.Context, ev domain.DisbursementEvent, actor string) (domain.Outcome, error) {
	log := logging.FromContext(ctx)

	var res applyResult
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		res = applyResult{outcome: domain.OutcomeIgnored}

		p, err := s.payouts.GetByDisbursementIDForUpdate(ctx, tx, ev.DisbursementID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrPayoutNotFound
			}
			return err
		}
		res.payout = p

		if p.Status.IsTerminal() {
			return nil
		}

		now := time.Now().UTC()
		switch ev.Status {
		case domain.PayoutStatusProcessing:
			if p.Status != domain.PayoutStatusPending {
				return nil
			}
			if err := s.payouts.Transition(ctx, tx, p.ID, []domain.PayoutStatus{domain.PayoutStatusPending},
				domain.PayoutStatusProcessing, nil, nil, ev.Raw); err != nil {
				return err
			}
			if err := s.writeEvent(ctx, tx, p.ID, domain.LifecycleEventProcessing, actor, ev.Raw, now); err != nil {
				return err
			}
			p.Status = domain.PayoutStatusProcessing
		case domain.PayoutStatusCompleted:
			campaign, err := s.markCompleted(ctx, tx, p, ev, actor, now)
			if err != nil {
				return err
			}
			res.campaign = campaign
		case domain.PayoutStatusFailed:
			if err := s.markFailed(ctx, tx, p, ev, actor, now); err != nil {
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
			log.Info("payout changed during processing", "disbursement_id", ev.DisbursementID)
			return domain.OutcomeIgnored, nil
		}
		return "", err
	}

	p := res.payout
	if res.outcome == domain.OutcomeIgnored {
		log.Info("disbursement event ignored",
			"payout_id", p.ID,
			"payout_status", p.Status,
			"event_status", ev.Status,
		)
		return res.outcome, nil
	}

	log.Info("disbursement event applied",
		"payout_id", p.ID,
		"campaign_id", p.CampaignID,
		"status", p.Status,
		"amount", p.Amount,
		"actor", actor,
	)

	if p.Status == domain.PayoutStatusCompleted {
		s.notifyCompleted(ctx, p, res.campaign)
	}
	return res.outcome, nil
}

func (s *Service) markCompleted(ctx context.Context, tx *sql.Tx, p *domain.Payout, ev domain.DisbursementEvent, actor string, now time.Time) (*domain.Campaign, error) {
	campaign, err := s.campaigns.GetForUpdate(ctx, tx, p.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("markCompleted: %w", err)
	}

	err = s.payouts.Transition(ctx, tx, p.ID,
		[]domain.PayoutStatus{domain.PayoutStatusPending, domain.PayoutStatusProcessing},
		domain.PayoutStatusCompleted, nil, &now, ev.Raw)
	if err != nil {
		return nil, fmt.Errorf("markCompleted: %w", err)
	}

	next := campaign.Debit(p.Amount)
	if err := s.campaigns.UpdateAggregate(ctx, tx, &next); err != nil {
		return nil, fmt.Errorf("markCompleted: %w", err)
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		CampaignID:    campaign.ID,
		SourceType:    domain.SourceTypePayout,
		SourceID:      p.ID,
		EntryType:     domain.EntryTypeDebit,
		Amount:        p.Amount,
		BalanceBefore: campaign.CurrentAmount,
		BalanceAfter:  next.CurrentAmount,
		CreatedAt:     now,
	}
	if err := s.ledger.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("markCompleted: ledger: %w", err)
	}

	if err := s.writeEvent(ctx, tx, p.ID, domain.LifecycleEventCompleted, actor, ev.Raw, now); err != nil {
		return nil, fmt.Errorf("markCompleted: %w", err)
	}

	p.Status = domain.PayoutStatusCompleted
	p.CompletedAt = &now
	return &next, nil
}

func (s *Service) markFailed(ctx context.Context, tx *sql.Tx, p *domain.Payout, ev domain.DisbursementEvent, actor string, now time.Time) error {
	reason := ev.FailureCode
	if reason == "" {
		reason = unknownFailureCode
	}

	err := s.payouts.Transition(ctx, tx, p.ID,
		[]domain.PayoutStatus{domain.PayoutStatusPending, domain.PayoutStatusProcessing},
		domain.PayoutStatusFailed, &reason, nil, ev.Raw)
	if err != nil {
		return fmt.Errorf("markFailed: %w", err)
	}
	if err := s.writeEvent(ctx, tx, p.ID, domain.LifecycleEventFailed, actor, ev.Raw, now); err != nil {
		return fmt.Errorf("markFailed: %w", err)
	}

	p.Status = domain.PayoutStatusFailed
	p.FailureReason = &reason
	return nil
}

// notifyCompleted runs after commit. A notification failure never undoes a payout.
func (s *Service) notifyCompleted(ctx context.Context, p *domain.Payout, campaign *domain.Campaign) {
	log := logging.FromContext(ctx)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.NotifyTimeout)
	defer cancel()

	creator, err := s.users.GetByID(ctx, campaign.CreatorID)
	if err != nil {
		log.Error("payout notification skipped, creator lookup failed", "payout_id", p.ID, "error", err)
		return
	}

	event := notify.NewPayoutCompleted(p.ID, campaign.ID, campaign.Title, creator.Name, creator.Email, p.Amount, *p.CompletedAt)
	if err := s.notifier.NotifyPayoutCompleted(ctx, event); err != nil {
		log.Error("payout notification failed", "payout_id", p.ID, "creator_id", creator.ID, "error", err)
		return
	}
	log.Info("payout notification sent", "payout_id", p.ID, "creator_id", creator.ID)
}
