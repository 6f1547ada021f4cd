package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/status"
)

// CreditPurchaseRepo reads and updates the payments table (credit purchases).
type CreditPurchaseRepo struct {
	pool *pgxpool.Pool
}

func NewCreditPurchaseRepo(pool *pgxpool.Pool) *CreditPurchaseRepo {
	return &CreditPurchaseRepo{pool: pool}
}

const creditPurchaseColumns = `
	id, owner_type, owner_id, company_id, client_name, amount::text, method, status,
	asaas_payment_id, pix_copy_paste, qr_code_image, invoice_url, description,
	created_at, paid_at, due_date
`

func scanCreditPurchase(row rowScanner) (*models.CreditPurchaseRow, error) {
	var p models.CreditPurchaseRow
	var amount string
	if err := row.Scan(&p.ID, &p.OwnerType, &p.OwnerID, &p.CompanyID, &p.ClientName, &amount, &p.Method, &p.Status,
		&p.ExternalID, &p.PixCopyPaste, &p.QRCodeImage, &p.InvoiceURL, &p.Description,
		&p.CreatedAt, &p.PaidAt, &p.DueDate); err != nil {
		return nil, err
	}
	var err error
	if p.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CreditPurchaseRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// ListByCompany returns every purchase of the company, or of all companies for uuid.Nil.
func (r *CreditPurchaseRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.CreditPurchaseRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+creditPurchaseColumns+` FROM payments
		WHERE ($1::uuid IS NULL OR company_id = $1)
		ORDER BY created_at DESC`, scopeArg(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditPurchaseRow
	for rows.Next() {
		p, err := scanCreditPurchase(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// GetByRef looks a purchase up by internal id or gateway id.
func (r *CreditPurchaseRepo) GetByRef(ctx context.Context, ref string) (*models.CreditPurchaseRow, error) {
	p, err := scanCreditPurchase(r.pool.QueryRow(ctx, `SELECT `+creditPurchaseColumns+` FROM payments
		WHERE id::text = $1 OR asaas_payment_id = $1 LIMIT 1`, ref))
	if noRows(err) {
		return nil, nil
	}
	return p, err
}

func (r *CreditPurchaseRepo) FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, error) {
	return r.findRecord(ctx, "asaas_payment_id = $1", externalID)
}

func (r *CreditPurchaseRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	return r.findRecord(ctx, "id = $1", id)
}

func (r *CreditPurchaseRepo) findRecord(ctx context.Context, where string, arg any) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	var ext *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, asaas_payment_id, company_id, status, paid_at FROM payments WHERE `+where, arg,
	).Scan(&rec.ID, &ext, &rec.CompanyID, &rec.RawStatus, &rec.PaidAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Source = models.SourceCredits
	rec.ExternalID = deref(ext)
	rec.Status = status.FromStored(rec.RawStatus)
	return &rec, nil
}

func (r *CreditPurchaseRepo) ExistsExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE asaas_payment_id = $1)`, externalID).Scan(&exists)
	return exists, err
}

// UpdateStatus sets the status only if the row still holds expectedRaw.
// It reports whether a row was changed.
func (r *CreditPurchaseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expectedRaw, newRaw string, paidAt *time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = $3, paid_at = COALESCE($4, paid_at)
		WHERE id = $1 AND status = $2
	`, id, expectedRaw, newRaw, paidAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetStatus overwrites the status unconditionally. Used for authoritative corrections.
func (r *CreditPurchaseRepo) SetStatus(ctx context.Context, id uuid.UUID, newRaw string, paidAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE payments SET status = $2, paid_at = COALESCE($3, paid_at) WHERE id = $1`, id, newRaw, paidAt)
	return err
}

// ConfirmTx moves a pending or expired purchase to confirmed inside tx and
// returns it. It returns (nil, nil) when no row was eligible.
func (r *CreditPurchaseRepo) ConfirmTx(ctx context.Context, tx pgx.Tx, externalID string, paidAt time.Time) (*models.CreditPurchaseRow, error) {
	p, err := scanCreditPurchase(tx.QueryRow(ctx, `
		UPDATE payments SET status = 'confirmed', paid_at = $2
		WHERE asaas_payment_id = $1 AND lower(status) IN ('pending', 'expired', 'pendente', 'overdue', 'vencido')
		RETURNING `+creditPurchaseColumns, externalID, paidAt))
	if noRows(err) {
		return nil, nil
	}
	return p, err
}
