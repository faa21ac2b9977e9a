package service

import (
	"context"
	"time"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
)

type staleDonationRepository interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Donation, error)
}

type stalePayoutRepository interface {
	ListStaleOutstanding(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payout, error)
}

type idempotencyCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

type gatewayPoller interface {
	GetInvoice(ctx context.Context, invoiceID string) (*gateway.Invoice, error)
	GetDisbursement(ctx context.Context, disbursementID string) (*gateway.Disbursement, error)
}

type donationReconciler interface {
	Reconcile(ctx context.Context, ev domain.InvoiceEvent) (domain.Outcome, error)
}

type payoutReconciler interface {
	Reconcile(ctx context.Context, ev domain.DisbursementEvent) (domain.Outcome, error)
}
