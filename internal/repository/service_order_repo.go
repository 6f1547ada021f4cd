package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/status"
)

// ServiceOrderRepo reads and writes service_orders (per-service charges).
type ServiceOrderRepo struct {
	pool *pgxpool.Pool
}

func NewServiceOrderRepo(pool *pgxpool.Pool) *ServiceOrderRepo {
	return &ServiceOrderRepo{pool: pool}
}

const serviceOrderColumns = `
	id, company_id, client_name, service_type, amount::text, status, payment_method,
	asaas_payment_id, pix_copy_paste, qr_code_image, invoice_url, notes, description,
	synced_from_gateway, created_at, paid_at, due_date
`

func scanServiceOrder(row rowScanner) (*models.ServiceOrderRow, error) {
	var o models.ServiceOrderRow
	var amount string
	if err := row.Scan(&o.ID, &o.CompanyID, &o.ClientName, &o.ServiceType, &amount, &o.Status, &o.PaymentMethod,
		&o.ExternalID, &o.PixCopyPaste, &o.QRCodeImage, &o.InvoiceURL, &o.Notes, &o.Description,
		&o.SyncedFromGateway, &o.CreatedAt, &o.PaidAt, &o.DueDate); err != nil {
		return nil, err
	}
	var err error
	if o.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *ServiceOrderRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.ServiceOrderRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+serviceOrderColumns+` FROM service_orders
		WHERE ($1::uuid IS NULL OR company_id = $1)
		ORDER BY created_at DESC`, scopeArg(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ServiceOrderRow
	for rows.Next() {
		o, err := scanServiceOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func (r *ServiceOrderRepo) GetByRef(ctx context.Context, ref string) (*models.ServiceOrderRow, error) {
	o, err := scanServiceOrder(r.pool.QueryRow(ctx, `SELECT `+serviceOrderColumns+` FROM service_orders
		WHERE id::text = $1 OR asaas_payment_id = $1 LIMIT 1`, ref))
	if noRows(err) {
		return nil, nil
	}
	return o, err
}

func (r *ServiceOrderRepo) FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, error) {
	return r.findRecord(ctx, "asaas_payment_id = $1", externalID)
}

func (r *ServiceOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	return r.findRecord(ctx, "id = $1", id)
}

func (r *ServiceOrderRepo) findRecord(ctx context.Context, where string, arg any) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	var ext *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, asaas_payment_id, company_id, status, paid_at FROM service_orders WHERE `+where, arg,
	).Scan(&rec.ID, &ext, &rec.CompanyID, &rec.RawStatus, &rec.PaidAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Source = models.SourceServiceCharge
	rec.ExternalID = deref(ext)
	rec.Status = status.FromStored(rec.RawStatus)
	return &rec, nil
}

func (r *ServiceOrderRepo) ExistsExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM service_orders WHERE asaas_payment_id = $1)`, externalID).Scan(&exists)
	return exists, err
}

func (r *ServiceOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expectedRaw, newRaw string, paidAt *time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE service_orders SET status = $3, paid_at = COALESCE($4, paid_at), updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, expectedRaw, newRaw, paidAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ServiceOrderRepo) SetStatus(ctx context.Context, id uuid.UUID, newRaw string, paidAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE service_orders SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = now() WHERE id = $1
	`, id, newRaw, paidAt)
	return err
}

// InsertSynced inserts a row pulled from the gateway. A row with the same
// gateway id wins the race; inserted is false in that case.
func (r *ServiceOrderRepo) InsertSynced(ctx context.Context, o *models.ServiceOrderRow) (inserted bool, err error) {
	err = r.pool.QueryRow(ctx, `
		INSERT INTO service_orders (id, company_id, client_name, service_type, amount, status, payment_method,
			asaas_payment_id, pix_copy_paste, invoice_url, description, synced_from_gateway, created_at, paid_at, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12, $13, $14)
		ON CONFLICT (asaas_payment_id) DO NOTHING
		RETURNING id
	`, o.ID, o.CompanyID, o.ClientName, o.ServiceType, o.Amount, o.Status, o.PaymentMethod,
		o.ExternalID, o.PixCopyPaste, o.InvoiceURL, o.Description, o.CreatedAt, o.PaidAt, o.DueDate).Scan(&o.ID)
	if noRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	o.SyncedFromGateway = true
	return true, nil
}

// upsertFromGatewaySQL keeps the stored pix payload when the gateway sends none.
const upsertFromGatewaySQL = `
	INSERT INTO service_orders (id, company_id, client_name, service_type, amount, status, payment_method,
		asaas_payment_id, pix_copy_paste, invoice_url, description, synced_from_gateway, created_at, paid_at, due_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12, $13, $14)
	ON CONFLICT (asaas_payment_id) DO UPDATE SET
		status = EXCLUDED.status,
		amount = EXCLUDED.amount,
		paid_at = COALESCE(EXCLUDED.paid_at, service_orders.paid_at),
		due_date = COALESCE(EXCLUDED.due_date, service_orders.due_date),
		invoice_url = COALESCE(EXCLUDED.invoice_url, service_orders.invoice_url),
		pix_copy_paste = COALESCE(EXCLUDED.pix_copy_paste, service_orders.pix_copy_paste),
		updated_at = now()
	RETURNING id, (xmax = 0)
`

// UpsertFromGateway inserts the row or overwrites status, amount and payment
// details of the row holding the same gateway id. It returns the stored id.
func (r *ServiceOrderRepo) UpsertFromGateway(ctx context.Context, o *models.ServiceOrderRow) (id uuid.UUID, inserted bool, err error) {
	err = r.pool.QueryRow(ctx, upsertFromGatewaySQL,
		o.ID, o.CompanyID, o.ClientName, o.ServiceType, o.Amount, o.Status, o.PaymentMethod,
		o.ExternalID, o.PixCopyPaste, o.InvoiceURL, o.Description, o.CreatedAt, o.PaidAt, o.DueDate).Scan(&id, &inserted)
	return id, inserted, err
}
