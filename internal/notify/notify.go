package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const PayoutCompletedRoutingKey = "payout.completed"

// PayoutCompleted is published once per payout that reaches completed. The
// email collaborator renders Subject and Body as-is.
type PayoutCompleted struct {
	PayoutID      uuid.UUID `json:"payout_id"`
	CampaignID    uuid.UUID `json:"campaign_id"`
	CampaignTitle string    `json:"campaign_title"`
	CreatorEmail  string    `json:"creator_email"`
	CreatorName   string    `json:"creator_name"`
	Amount        int64     `json:"amount"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	CompletedAt   time.Time `json:"completed_at"`
}

func NewPayoutCompleted(payoutID, campaignID uuid.UUID, campaignTitle, creatorName, creatorEmail string, amount int64, completedAt time.Time) PayoutCompleted {
	return PayoutCompleted{
		PayoutID:      payoutID,
		CampaignID:    campaignID,
		CampaignTitle: campaignTitle,
		CreatorEmail:  creatorEmail,
		CreatorName:   creatorName,
		Amount:        amount,
		Subject:       "Payout Completed",
		Body: fmt.Sprintf("Hi %s, your payout of %s for campaign %q has been sent to your bank account.",
			creatorName, FormatIDR(amount), campaignTitle),
		CompletedAt: completedAt,
	}
}

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatIDR renders whole rupiah with Indonesian digit grouping, e.g. Rp1.000.000.
func FormatIDR(amount int64) string {
	return idPrinter.Sprintf("Rp%d", amount)
}

// LogNotifier stands in when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyPayoutCompleted(ctx context.Context, event PayoutCompleted) error {
	n.logger.Warn("notification broker not configured, payout notification skipped",
		"payout_id", event.PayoutID,
		"creator_email", event.CreatorEmail,
		"amount", event.Amount,
	)
	return nil
}
