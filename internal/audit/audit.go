package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event is one entity-lifecycle audit record, e.g. a "post.created" with the
// post's fields captured at write time.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// NewEvent stamps a fresh event with an ID and the current time.
func NewEvent(eventType, entityType, entityID string, data map[string]any) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// EventStore persists audit events. Implemented by repository.DBAuditRepository.
type EventStore interface {
	Insert(ctx context.Context, event Event) error
	BulkInsert(ctx context.Context, events []Event) error
}

// Recorder accepts audit events for asynchronous persistence. Record must be
// non-blocking: a full recorder rejects with ErrRecorderFull instead of
// stalling the mutation that produced the event.
type Recorder interface {
	Record(ctx context.Context, event Event) error
	Start(ctx context.Context)
	Stop()
}

var ErrRecorderFull = errors.New("audit recorder is full")
