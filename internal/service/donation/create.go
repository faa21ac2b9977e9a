package donation

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/gateway"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

type CreateRequest struct {
	CampaignID    uuid.UUID
	DonorID       uuid.UUID
	Amount        int64
	PaymentMethod domain.PaymentMethod
	Message       string
	IsAnonymous   bool
}

// Create opens a processor invoice and records the pending donation. Nothing
// is stored when the processor call fails.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Donation, error) {
	log := logging.FromContext(ctx)

	message, err := s.validateCreate(req)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	campaign, err := s.campaigns.GetByID(ctx, req.CampaignID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Create: %w", domain.ErrCampaignNotFound)
		}
		return nil, fmt.Errorf("Create: %w", err)
	}
	if campaign.Status == domain.CampaignStatusCompleted {
		return nil, fmt.Errorf("Create: %w", domain.ErrCampaignCompleted)
	}

	donor, err := s.users.GetByID(ctx, req.DonorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Create: %w", domain.ErrDonorNotFound)
		}
		return nil, fmt.Errorf("Create: %w", err)
	}

	now := time.Now().UTC()
	reference, err := newReference(now)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	externalID := reference + "_" + campaign.ID.String()

	displayName := donor.Name
	if req.IsAnonymous {
		displayName = domain.AnonymousDonorName
	}

	inv, err := s.gateway.CreateInvoice(ctx, gateway.InvoiceRequest{
		ExternalID:         externalID,
		Amount:             req.Amount,
		Currency:           s.config.Currency,
		Description:        fmt.Sprintf("Donation for %s from %s", campaign.Title, displayName),
		PayerName:          displayName,
		PayerEmail:         donor.Email,
		PaymentMethod:      req.PaymentMethod,
		Duration:           s.config.InvoiceDuration,
		SuccessRedirectURL: s.config.FrontendURL + "/donations/" + reference + "?status=success",
		FailureRedirectURL: s.config.FrontendURL + "/donations/" + reference + "?status=failed",
	})
	if err != nil {
		log.Warn("invoice creation failed", "reference", reference, "campaign_id", campaign.ID, "error", err)
		return nil, fmt.Errorf("Create: %w", err)
	}

	expiresAt := inv.ExpiryDate.UTC()
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.config.InvoiceDuration)
	}

	d := &domain.Donation{
		ID:                uuid.New(),
		Reference:         reference,
		ExternalID:        externalID,
		CampaignID:        campaign.ID,
		DonorID:           donor.ID,
		Amount:            req.Amount,
		Message:           message,
		IsAnonymous:       req.IsAnonymous,
		PaymentMethod:     req.PaymentMethod,
		Status:            domain.DonationStatusPending,
		GatewayInvoiceID:  inv.ID,
		GatewayInvoiceURL: inv.InvoiceURL,
		ExpiresAt:         expiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	payload, _ := json.Marshal(map[string]string{"invoice_id": inv.ID})
	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.donations.Create(ctx, tx, d); err != nil {
			return fmt.Errorf("create donation: %w", err)
		}
		return s.writeEvent(ctx, tx, d.ID, domain.LifecycleEventCreated, "donor:"+donor.ID.String(), payload, now)
	})
	if err != nil {
		log.Error("donation persist failed after invoice creation",
			"reference", reference,
			"invoice_id", inv.ID,
			"error", err,
		)
		s.expireOrphanInvoice(ctx, inv.ID)
		return nil, fmt.Errorf("Create: %w", err)
	}

	log.Info("donation created",
		"donation_id", d.ID,
		"reference", reference,
		"campaign_id", campaign.ID,
		"amount", req.Amount,
		"invoice_id", inv.ID,
	)
	return d, nil
}

func (s *Service) validateCreate(req CreateRequest) (*string, error) {
	if req.Amount < s.config.MinDonationAmount {
		return nil, fmt.Errorf("validateCreate: minimum is %d: %w", s.config.MinDonationAmount, domain.ErrAmountBelowMinimum)
	}
	if !req.PaymentMethod.IsValid() {
		return nil, fmt.Errorf("validateCreate: %q: %w", req.PaymentMethod, domain.ErrInvalidPaymentMethod)
	}

	msg := strings.TrimSpace(req.Message)
	if utf8.RuneCountInString(msg) > s.config.MaxMessageLength {
		return nil, fmt.Errorf("validateCreate: limit is %d characters: %w", s.config.MaxMessageLength, domain.ErrMessageTooLong)
	}
	if msg == "" {
		return nil, nil
	}
	return &msg, nil
}

// expireOrphanInvoice closes an invoice whose donation could not be stored so
// the donor cannot pay into a record that does not exist.
func (s *Service) expireOrphanInvoice(ctx context.Context, invoiceID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.gateway.ExpireInvoice(ctx, invoiceID); err != nil && !errors.Is(err, gateway.ErrInvoiceNotFound) {
		logging.FromContext(ctx).Error("orphan invoice left open at gateway", "invoice_id", invoiceID, "error", err)
	}
}

// newReference builds DON_<unix ms>_<12 uppercase hex>.
func newReference(now time.Time) (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("newReference: %w", err)
	}
	return fmt.Sprintf("DON_%d_%s", now.UnixMilli(), strings.ToUpper(hex.EncodeToString(b))), nil
}
