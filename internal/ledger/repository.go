package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/multazero/backend/internal/models"
)

var errDuplicateEntry = errors.New("ledger entry already recorded for payment")

// Repository stores credit_ledger rows. It only ever INSERTs and SELECTs.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insertEntrySQL = `
	INSERT INTO credit_ledger (id, owner_type, owner_id, entry_type, amount, payment_id, actor_id, description)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at
`

func (r *Repository) Insert(ctx context.Context, e *models.CreditLedgerEntry) error {
	return insertEntry(ctx, r.pool, e)
}

// InsertTx inserts an entry inside the caller's transaction.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, e *models.CreditLedgerEntry) error {
	return insertEntry(ctx, tx, e)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertEntry(ctx context.Context, q queryRower, e *models.CreditLedgerEntry) error {
	err := q.QueryRow(ctx, insertEntrySQL,
		e.ID, e.OwnerType, e.OwnerID, e.EntryType, e.Amount, e.PaymentID, e.ActorID, e.Description,
	).Scan(&e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errDuplicateEntry
		}
		return err
	}
	return nil
}

// Sum returns the literal sum of every entry for the owner.
func (r *Repository) Sum(ctx context.Context, ownerType string, ownerID uuid.UUID) (decimal.Decimal, error) {
	var raw string
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text FROM credit_ledger WHERE owner_type = $1 AND owner_id = $2
	`, ownerType, ownerID).Scan(&raw)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func (r *Repository) List(ctx context.Context, ownerType string, ownerID uuid.UUID, limit, offset int) ([]*models.CreditLedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_type, owner_id, entry_type, amount::text, payment_id, actor_id, description, created_at
		FROM credit_ledger
		WHERE owner_type = $1 AND owner_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, ownerType, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditLedgerEntry
	for rows.Next() {
		var e models.CreditLedgerEntry
		var amount string
		if err := rows.Scan(&e.ID, &e.OwnerType, &e.OwnerID, &e.EntryType, &amount, &e.PaymentID, &e.ActorID, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ledger entry %s: bad amount %q: %w", e.ID, amount, err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
