package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/status"
)

// LegacyGatewayRepo reads and updates legacy_gateway_payments.
// Its status column holds raw gateway codes.
type LegacyGatewayRepo struct {
	pool *pgxpool.Pool
}

func NewLegacyGatewayRepo(pool *pgxpool.Pool) *LegacyGatewayRepo {
	return &LegacyGatewayRepo{pool: pool}
}

const legacyGatewayColumns = `
	id, company_id, customer_name, value::text, status, billing_type, gateway_id,
	invoice_url, pix_payload, pix_qr_image, description, raw_payload,
	date_created, payment_date, due_date
`

func scanLegacyGateway(row rowScanner) (*models.LegacyGatewayRow, error) {
	var l models.LegacyGatewayRow
	var value string
	if err := row.Scan(&l.ID, &l.CompanyID, &l.CustomerName, &value, &l.Status, &l.BillingType, &l.GatewayID,
		&l.InvoiceURL, &l.PixPayload, &l.PixQRImage, &l.Description, &l.RawPayload,
		&l.DateCreated, &l.PaymentDate, &l.DueDate); err != nil {
		return nil, err
	}
	var err error
	if l.Value, err = parseAmount(value); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LegacyGatewayRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.LegacyGatewayRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+legacyGatewayColumns+` FROM legacy_gateway_payments
		WHERE ($1::uuid IS NULL OR company_id = $1)
		ORDER BY date_created DESC`, scopeArg(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LegacyGatewayRow
	for rows.Next() {
		l, err := scanLegacyGateway(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func (r *LegacyGatewayRepo) GetByRef(ctx context.Context, ref string) (*models.LegacyGatewayRow, error) {
	l, err := scanLegacyGateway(r.pool.QueryRow(ctx, `SELECT `+legacyGatewayColumns+` FROM legacy_gateway_payments
		WHERE id::text = $1 OR gateway_id = $1 LIMIT 1`, ref))
	if noRows(err) {
		return nil, nil
	}
	return l, err
}

func (r *LegacyGatewayRepo) FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, error) {
	return r.findRecord(ctx, "gateway_id = $1", externalID)
}

func (r *LegacyGatewayRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	return r.findRecord(ctx, "id = $1", id)
}

func (r *LegacyGatewayRepo) findRecord(ctx context.Context, where string, arg any) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, gateway_id, company_id, status, payment_date FROM legacy_gateway_payments WHERE `+where, arg,
	).Scan(&rec.ID, &rec.ExternalID, &rec.CompanyID, &rec.RawStatus, &rec.PaidAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Source = models.SourceLegacyGateway
	rec.Status = status.FromStored(rec.RawStatus)
	return &rec, nil
}

func (r *LegacyGatewayRepo) ExistsExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM legacy_gateway_payments WHERE gateway_id = $1)`, externalID).Scan(&exists)
	return exists, err
}

func (r *LegacyGatewayRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expectedRaw, newRaw string, paidAt *time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE legacy_gateway_payments SET status = $3, payment_date = COALESCE($4, payment_date)
		WHERE id = $1 AND status = $2
	`, id, expectedRaw, newRaw, paidAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LegacyGatewayRepo) SetStatus(ctx context.Context, id uuid.UUID, newRaw string, paidAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE legacy_gateway_payments SET status = $2, payment_date = COALESCE($3, payment_date) WHERE id = $1
	`, id, newRaw, paidAt)
	return err
}
