package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type LifecycleEventType string

const (
	LifecycleEventCreated    LifecycleEventType = "created"
	LifecycleEventProcessing LifecycleEventType = "processing"
	LifecycleEventPaid       LifecycleEventType = "paid"
	LifecycleEventExpired    LifecycleEventType = "expired"
	LifecycleEventCancelled  LifecycleEventType = "cancelled"
	LifecycleEventCompleted  LifecycleEventType = "completed"
	LifecycleEventFailed     LifecycleEventType = "failed"
)

type LifecycleEvent struct {
	ID          uuid.UUID
	SubjectType SourceType
	SubjectID   uuid.UUID
	EventType   LifecycleEventType
	Actor       string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

const (
	ActorGateway    = "gateway"
	ActorReconciler = "reconciler"
)
