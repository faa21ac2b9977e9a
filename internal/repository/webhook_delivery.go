package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

type WebhookDeliveryRepository struct {
	db *sql.DB
}

func NewWebhookDeliveryRepository(db *sql.DB) *WebhookDeliveryRepository {
	return &WebhookDeliveryRepository{db: db}
}

func (r *WebhookDeliveryRepository) Create(ctx context.Context, d *domain.WebhookDelivery) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, kind, resource_ref, outcome, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.Kind, d.ResourceRef, d.Outcome, jsonArg(d.Payload), d.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WebhookDeliveryRepository) ListByResource(ctx context.Context, resourceRef string) ([]domain.WebhookDelivery, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, resource_ref, outcome, payload, received_at
		FROM webhook_deliveries WHERE resource_ref = $1 ORDER BY received_at, id`, resourceRef,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByResource: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookDelivery
	for rows.Next() {
		var d domain.WebhookDelivery
		var payload []byte
		if err := rows.Scan(&d.ID, &d.Kind, &d.ResourceRef, &d.Outcome, &payload, &d.ReceivedAt); err != nil {
			return nil, fmt.Errorf("ListByResource: scan: %w", err)
		}
		if payload != nil {
			d.Payload = payload
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByResource: rows: %w", err)
	}
	return out, nil
}
