package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scribeapp/scribe/internal/audit"
)

// DBAuditRepository persists entity-lifecycle audit events. The recorders
// prefer BulkInsert; Insert exists for one-off writes.
type DBAuditRepository struct {
	db DB
}

func NewDBAuditRepository(db DB) *DBAuditRepository {
	return &DBAuditRepository{
		db: db,
	}
}

func (r *DBAuditRepository) Insert(ctx context.Context, event audit.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event data: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, type, entity_type, entity_id, occurred_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.Exec(ctx, query,
		event.ID, event.Type, event.EntityType, event.EntityID, event.OccurredAt, data)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

func (r *DBAuditRepository) BulkInsert(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO audit_events (id, type, entity_type, entity_id, occurred_at, data)
		VALUES
	`

	values := make([]string, len(events))
	args := make([]any, 0, len(events)*6)
	argIndex := 1

	for i, event := range events {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal audit event data: %w", err)
		}

		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			argIndex, argIndex+1, argIndex+2, argIndex+3, argIndex+4, argIndex+5)

		args = append(args, event.ID, event.Type, event.EntityType, event.EntityID, event.OccurredAt, data)
		argIndex += 6
	}

	query += strings.Join(values, ", ")

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk insert audit events: %w", err)
	}

	return nil
}
