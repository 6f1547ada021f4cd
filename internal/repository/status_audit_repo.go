package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/multazero/backend/internal/models"
)

type StatusAuditRepo struct {
	pool *pgxpool.Pool
}

func NewStatusAuditRepo(pool *pgxpool.Pool) *StatusAuditRepo {
	return &StatusAuditRepo{pool: pool}
}

func (r *StatusAuditRepo) Insert(ctx context.Context, a *models.StatusAuditEntry) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payment_status_audit (id, source, payment_id, external_id, old_status, new_status, actor_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, a.ID, a.Source, a.PaymentID, a.ExternalID, a.OldStatus, a.NewStatus, a.ActorID, a.Reason).Scan(&a.CreatedAt)
}
