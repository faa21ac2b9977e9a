package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/josh-kwaku/crowdfund-payments/internal/auth"
	"github.com/josh-kwaku/crowdfund-payments/internal/config"
	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
	"github.com/josh-kwaku/crowdfund-payments/internal/notify"
	"github.com/josh-kwaku/crowdfund-payments/internal/repository"
	"github.com/josh-kwaku/crowdfund-payments/internal/service"
	"github.com/josh-kwaku/crowdfund-payments/internal/service/donation"
	"github.com/josh-kwaku/crowdfund-payments/internal/service/payout"
)

var errLedgerMismatch = errors.New("ledger does not match campaign aggregate")

func connect(ctx context.Context) (*config.Config, *slog.Logger, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.Init("ledgerctl", cfg.LogLevel, cfg.AppEnv)

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnectAttempts: 1,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Poll the gateway once for stale pending donations and payouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, db, err := connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			grace, _ := cmd.Flags().GetDuration("grace")
			if grace <= 0 {
				grace = cfg.ReconcileGrace
			}

			gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecretKey, cfg.GatewayTimeout)
			donations := repository.NewDonationRepository(db)
			payouts := repository.NewPayoutRepository(db)
			campaigns := repository.NewCampaignRepository(db)
			users := repository.NewUserRepository(db)
			ledger := repository.NewLedgerRepository(db)
			events := repository.NewLifecycleEventRepository(db)
			txRunner := repository.NewDB(db)

			reconciler := service.NewReconciler(service.ReconcilerDeps{
				Donations:   donations,
				Payouts:     payouts,
				Idempotency: repository.NewIdempotencyRepository(db),
				Gateway:     gw,
				DonationSvc: donation.NewService(donations, campaigns, users, ledger, events, txRunner, gw, cfg),
				PayoutSvc: payout.NewService(payout.Deps{
					Payouts:   payouts,
					Campaigns: campaigns,
					Banks:     repository.NewBankAccountRepository(db),
					Users:     users,
					Ledger:    ledger,
					Events:    events,
					Tx:        txRunner,
					Locker:    repository.NewCampaignLocker(db),
					Gateway:   gw,
					Notifier:  notify.NewLogNotifier(logger),
				}, cfg),
			}, logger, grace, cfg.ReconcileBatchSize)

			res := reconciler.RunOnce(logging.WithLogger(ctx, logger))
			fmt.Fprintf(cmd.OutOrStdout(),
				"donations checked=%d applied=%d\npayouts checked=%d applied=%d\nidempotency purged=%d\nerrors=%d\n",
				res.DonationsChecked, res.DonationsApplied,
				res.PayoutsChecked, res.PayoutsApplied,
				res.IdempotencyPurge, res.Errors,
			)
			if res.Errors > 0 {
				return fmt.Errorf("reconcile finished with %d errors", res.Errors)
			}
			return nil
		},
	}

	cmd.Flags().Duration("grace", 0, "Only poll records older than this (defaults to RECONCILE_GRACE)")
	return cmd
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit [campaign-id]",
		Short: "Compare a campaign's aggregates against its ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid campaign id: %w", err)
			}

			ctx := cmd.Context()
			_, _, db, err := connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			campaign, err := repository.NewCampaignRepository(db).GetByID(ctx, campaignID)
			if err != nil {
				return err
			}
			credits, debits, err := repository.NewLedgerRepository(db).Totals(ctx, campaignID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "campaign     %s (%s)\n", campaign.Title, campaign.Status)
			fmt.Fprintf(out, "credits      %s\n", notify.FormatIDR(credits))
			fmt.Fprintf(out, "debits       %s\n", notify.FormatIDR(debits))
			fmt.Fprintf(out, "current      %s\n", notify.FormatIDR(campaign.CurrentAmount))
			fmt.Fprintf(out, "paid out     %s\n", notify.FormatIDR(campaign.PayoutAmount))

			if err := auditCampaign(campaign, credits, debits); err != nil {
				return err
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}

func auditCampaign(c *domain.Campaign, credits, debits int64) error {
	if c.CurrentAmount != credits-debits {
		return fmt.Errorf("current amount %d, ledger net %d: %w", c.CurrentAmount, credits-debits, errLedgerMismatch)
	}
	if c.PayoutAmount != debits {
		return fmt.Errorf("payout amount %d, ledger debits %d: %w", c.PayoutAmount, debits, errLedgerMismatch)
	}
	return nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawID, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			expiry, _ := cmd.Flags().GetDuration("expiry")
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("a signing secret is required (--secret or JWT_SECRET)")
			}

			userID, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			token, err := auth.GenerateToken(auth.Identity{UserID: userID, Role: domain.UserRole(role)}, secret, expiry)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("user", "", "User id the token is issued for")
	cmd.Flags().String("role", string(domain.UserRoleDonor), "Role claim (donor or creator)")
	cmd.Flags().Duration("expiry", time.Hour, "Token lifetime")
	cmd.Flags().String("secret", "", "Signing secret (defaults to JWT_SECRET)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
