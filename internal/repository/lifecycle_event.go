package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
)

const lifecycleEventColumns = `id, subject_type, subject_id, event_type, actor, payload, created_at`

type LifecycleEventRepository struct {
	db *sql.DB
}

func NewLifecycleEventRepository(db *sql.DB) *LifecycleEventRepository {
	return &LifecycleEventRepository{db: db}
}

func (r *LifecycleEventRepository) Create(ctx context.Context, tx *sql.Tx, event *domain.LifecycleEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO lifecycle_events (id, subject_type, subject_id, event_type, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.SubjectType, event.SubjectID, event.EventType, event.Actor,
		jsonArg(event.Payload), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LifecycleEventRepository) GetBySubject(ctx context.Context, subjectType domain.SourceType, subjectID uuid.UUID) ([]domain.LifecycleEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lifecycleEventColumns+` FROM lifecycle_events
		WHERE subject_type = $1 AND subject_id = $2 ORDER BY created_at, id`,
		subjectType, subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetBySubject: %w", err)
	}
	defer rows.Close()

	var events []domain.LifecycleEvent
	for rows.Next() {
		var e domain.LifecycleEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.SubjectType, &e.SubjectID, &e.EventType, &e.Actor, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetBySubject: scan: %w", err)
		}
		if payload != nil {
			e.Payload = payload
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetBySubject: rows: %w", err)
	}
	return events, nil
}
