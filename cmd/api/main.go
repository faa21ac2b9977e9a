package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/josh-kwaku/crowdfund-payments/internal/config"
	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
	"github.com/josh-kwaku/crowdfund-payments/internal/handler"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
	"github.com/josh-kwaku/crowdfund-payments/internal/middleware"
	"github.com/josh-kwaku/crowdfund-payments/internal/notify"
	"github.com/josh-kwaku/crowdfund-payments/internal/ratelimit"
	"github.com/josh-kwaku/crowdfund-payments/internal/repository"
	"github.com/josh-kwaku/crowdfund-payments/internal/service"
	"github.com/josh-kwaku/crowdfund-payments/internal/service/donation"
	"github.com/josh-kwaku/crowdfund-payments/internal/service/payout"
)

const idempotencyTTL = 24 * time.Hour

type payoutNotifier interface {
	NotifyPayoutCompleted(ctx context.Context, event notify.PayoutCompleted) error
}

func main() {
	if err := run(); err != nil {
		slog.Error("crowdfund api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Init("crowdfund-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		ConnectAttempts:  cfg.DBConnectAttempts,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	var notifier payoutNotifier = notify.NewLogNotifier(logger)
	if cfg.RabbitMQURL != "" {
		publisher, err := notify.NewPublisher(cfg.RabbitMQURL, cfg.NotificationExchange, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		notifier = publisher
	}

	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		limiter, err = ratelimit.NewFromURL(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return err
		}
		defer limiter.Close()
	} else {
		logger.Warn("REDIS_URL not set, donation rate limiting disabled")
	}

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecretKey, cfg.GatewayTimeout)

	donationRepo := repository.NewDonationRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	campaigns := repository.NewCampaignRepository(db)
	users := repository.NewUserRepository(db)
	ledger := repository.NewLedgerRepository(db)
	events := repository.NewLifecycleEventRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)
	txRunner := repository.NewDB(db)

	donationSvc := donation.NewService(donationRepo, campaigns, users, ledger, events, txRunner, gw, cfg)
	payoutSvc := payout.NewService(payout.Deps{
		Payouts:   payoutRepo,
		Campaigns: campaigns,
		Banks:     repository.NewBankAccountRepository(db),
		Users:     users,
		Ledger:    ledger,
		Events:    events,
		Tx:        txRunner,
		Locker:    repository.NewCampaignLocker(db),
		Gateway:   gw,
		Notifier:  notifier,
	}, cfg)

	if cfg.ReconcileSchedule != "" {
		reconciler := service.NewReconciler(service.ReconcilerDeps{
			Donations:   donationRepo,
			Payouts:     payoutRepo,
			Idempotency: idempotency,
			Gateway:     gw,
			DonationSvc: donationSvc,
			PayoutSvc:   payoutSvc,
		}, logger.With("component", "reconciler"), cfg.ReconcileGrace, cfg.ReconcileBatchSize)
		if err := reconciler.Start(cfg.ReconcileSchedule); err != nil {
			return err
		}
		defer reconciler.Stop()
	}

	checks := map[string]handler.Pinger{"database": db}
	if limiter != nil {
		checks["redis"] = limiter
	}

	router := newRouter(routerDeps{
		logger:      logger,
		cfg:         cfg,
		limiter:     limiter,
		idempotency: idempotency,
		health:      handler.NewHealthHandler(checks),
		webhooks:    handler.NewWebhookHandler(donationSvc, payoutSvc, repository.NewWebhookDeliveryRepository(db)),
		donations:   handler.NewDonationHandler(donationSvc),
		payouts:     handler.NewPayoutHandler(payoutSvc),
		campaigns:   handler.NewCampaignHandler(payoutSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

type routerDeps struct {
	logger      *slog.Logger
	cfg         *config.Config
	limiter     *ratelimit.Limiter
	idempotency *repository.IdempotencyRepository
	health      *handler.HealthHandler
	webhooks    *handler.WebhookHandler
	donations   *handler.DonationHandler
	payouts     *handler.PayoutHandler
	campaigns   *handler.CampaignHandler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Tracing, middleware.Logging(d.logger), middleware.Recovery)

	r.Get("/health", d.health.Liveness)
	r.Get("/health/ready", d.health.Readiness)

	var limiter middleware.Limiter
	if d.limiter != nil {
		limiter = d.limiter
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(middleware.WebhookToken(d.cfg.WebhookCallbackToken))
			r.Post("/invoices", d.webhooks.Invoice)
			r.Post("/disbursements", d.webhooks.Disbursement)
		})

		r.Get("/campaigns/{id}/donations", d.donations.CampaignDonations)
		r.Get("/campaigns/{id}/funding", d.campaigns.Funding)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.cfg.JWTSecret))

			r.Route("/donations", func(r chi.Router) {
				r.Get("/", d.donations.History)
				r.Get("/{reference}", d.donations.Get)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(domain.UserRoleDonor))
					r.With(
						middleware.RateLimit(limiter, "donations", d.cfg.DonationRateLimitPerMinute, time.Minute),
						middleware.Idempotency(d.idempotency, idempotencyTTL),
					).Post("/", d.donations.Create)
					r.Post("/{reference}/cancel", d.donations.Cancel)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.UserRoleCreator))
				r.With(middleware.Idempotency(d.idempotency, idempotencyTTL)).Post("/payouts", d.payouts.Create)
				r.Get("/campaigns/{id}/payouts", d.payouts.ListForCampaign)
			})
		})
	})

	return r
}
