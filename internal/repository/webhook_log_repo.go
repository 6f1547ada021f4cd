package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/multazero/backend/internal/models"
)

// WebhookLogRepo appends to webhook_event_log. Entries are never updated.
type WebhookLogRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookLogRepo(pool *pgxpool.Pool) *WebhookLogRepo {
	return &WebhookLogRepo{pool: pool}
}

func (r *WebhookLogRepo) Insert(ctx context.Context, e *models.WebhookEventLogEntry) error {
	var payload any
	if len(e.RawPayload) > 0 {
		payload = string(e.RawPayload)
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO webhook_event_log (id, event_id, event_type, external_id, raw_payload, dispatch_outcome)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING received_at
	`, e.ID, e.EventID, e.EventType, e.ExternalID, payload, e.DispatchOutcome).Scan(&e.ReceivedAt)
}
