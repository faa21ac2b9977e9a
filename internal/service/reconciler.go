package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

// Reconciler polls the processor for donations and payouts whose callbacks
// never arrived and applies what it finds through the same paths as a webhook.
type Reconciler struct {
	donations   staleDonationRepository
	payouts     stalePayoutRepository
	idempotency idempotencyCleaner
	gateway     gatewayPoller
	donationSvc donationReconciler
	payoutSvc   payoutReconciler
	logger      *slog.Logger
	grace       time.Duration
	batchSize   int
	cron        *cron.Cron
	runTimeout  time.Duration
}

type ReconcilerDeps struct {
	Donations   staleDonationRepository
	Payouts     stalePayoutRepository
	Idempotency idempotencyCleaner
	Gateway     gatewayPoller
	DonationSvc donationReconciler
	PayoutSvc   payoutReconciler
}

// RunResult counts what a single pass did.
type RunResult struct {
	DonationsChecked int
	DonationsApplied int
	PayoutsChecked   int
	PayoutsApplied   int
	Errors           int
	IdempotencyPurge int64
}

func NewReconciler(deps ReconcilerDeps, logger *slog.Logger, grace time.Duration, batchSize int) *Reconciler {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Reconciler{
		donations:   deps.Donations,
		payouts:     deps.Payouts,
		idempotency: deps.Idempotency,
		gateway:     deps.Gateway,
		donationSvc: deps.DonationSvc,
		payoutSvc:   deps.PayoutSvc,
		logger:      logger,
		grace:       grace,
		batchSize:   batchSize,
		runTimeout:  5 * time.Minute,
	}
}

// Start schedules RunOnce on a cron schedule such as "@every 5m".
func (r *Reconciler) Start(schedule string) error {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(r.logger.Handler(), slog.LevelInfo))
	r.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger), cron.Recover(cronLogger)))

	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.runTimeout)
		defer cancel()
		r.RunOnce(logging.WithLogger(ctx, r.logger))
	})
	if err != nil {
		return fmt.Errorf("Reconciler.Start: schedule %q: %w", schedule, err)
	}

	r.cron.Start()
	r.logger.Info("reconciler started", "schedule", schedule, "grace", r.grace, "batch_size", r.batchSize)
	return nil
}

// Stop waits for a running pass to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.logger.Info("reconciler stopped")
}

func (r *Reconciler) RunOnce(ctx context.Context) RunResult {
	var res RunResult
	cutoff := time.Now().UTC().Add(-r.grace)

	r.reconcileDonations(ctx, cutoff, &res)
	r.reconcilePayouts(ctx, cutoff, &res)

	if r.idempotency != nil {
		purged, err := r.idempotency.CleanExpired(ctx)
		if err != nil {
			r.logger.Error("idempotency cleanup failed", "error", err)
			res.Errors++
		}
		res.IdempotencyPurge = purged
	}

	r.logger.Info("reconciliation pass finished",
		"donations_checked", res.DonationsChecked,
		"donations_applied", res.DonationsApplied,
		"payouts_checked", res.PayoutsChecked,
		"payouts_applied", res.PayoutsApplied,
		"idempotency_purged", res.IdempotencyPurge,
		"errors", res.Errors,
	)
	return res
}

func (r *Reconciler) reconcileDonations(ctx context.Context, cutoff time.Time, res *RunResult) {
	stale, err := r.donations.ListStalePending(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list stale donations", "error", err)
		res.Errors++
		return
	}

	for _, d := range stale {
		res.DonationsChecked++

		ev, ok, err := r.invoiceEvent(ctx, d)
		if err != nil {
			r.logger.Warn("invoice poll failed", "reference", d.Reference, "invoice_id", d.GatewayInvoiceID, "error", err)
			res.Errors++
			continue
		}
		if !ok {
			continue
		}

		outcome, err := r.donationSvc.Reconcile(ctx, ev)
		if err != nil {
			r.logger.Error("donation reconcile failed", "reference", d.Reference, "error", err)
			res.Errors++
			continue
		}
		if outcome == domain.OutcomeApplied {
			res.DonationsApplied++
		}
	}
}

// invoiceEvent reports false when the invoice is still open at the processor.
func (r *Reconciler) invoiceEvent(ctx context.Context, d domain.Donation) (domain.InvoiceEvent, bool, error) {
	inv, err := r.gateway.GetInvoice(ctx, d.GatewayInvoiceID)
	if err != nil {
		if errors.Is(err, gateway.ErrInvoiceNotFound) {
			raw, _ := json.Marshal(map[string]string{"invoice_id": d.GatewayInvoiceID, "reason": "not found at gateway"})
			return domain.InvoiceEvent{
				ExternalID: d.ExternalID,
				InvoiceID:  d.GatewayInvoiceID,
				Status:     domain.DonationStatusExpired,
				Raw:        raw,
			}, true, nil
		}
		return domain.InvoiceEvent{}, false, err
	}

	ev := inv.Event()
	if ev.Status == domain.DonationStatusPending {
		return domain.InvoiceEvent{}, false, nil
	}
	// the record is keyed on our external id, not whatever the poll echoes back
	ev.ExternalID = d.ExternalID
	return ev, true, nil
}

func (r *Reconciler) reconcilePayouts(ctx context.Context, cutoff time.Time, res *RunResult) {
	stale, err := r.payouts.ListStaleOutstanding(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list stale payouts", "error", err)
		res.Errors++
		return
	}

	for _, p := range stale {
		res.PayoutsChecked++

		disb, err := r.gateway.GetDisbursement(ctx, p.GatewayDisbursementID)
		if err != nil {
			r.logger.Warn("disbursement poll failed", "payout_id", p.ID, "disbursement_id", p.GatewayDisbursementID, "error", err)
			res.Errors++
			continue
		}

		ev := disb.Event()
		ev.DisbursementID = p.GatewayDisbursementID
		outcome, err := r.payoutSvc.Reconcile(ctx, ev)
		if err != nil {
			r.logger.Error("payout reconcile failed", "payout_id", p.ID, "error", err)
			res.Errors++
			continue
		}
		if outcome == domain.OutcomeApplied {
			res.PayoutsApplied++
		}
	}
}
