// Package recharge confirms credit purchases and credits the buyer exactly once.
package recharge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/multazero/backend/internal/ledger"
	"github.com/multazero/backend/internal/models"
)

// PurchaseStore is the slice of the credit purchase repository used here.
type PurchaseStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	ConfirmTx(ctx context.Context, tx pgx.Tx, externalID string, paidAt time.Time) (*models.CreditPurchaseRow, error)
	ExistsExternalID(ctx context.Context, externalID string) (bool, error)
}

type Ledger interface {
	AddCreditsTx(ctx context.Context, tx pgx.Tx, in ledger.AddCreditsInput) (*models.CreditLedgerEntry, error)
}

// Outcome reports what ConfirmByExternalID did. Handled is false when the
// external id is not a credit purchase, so the caller should try elsewhere.
type Outcome struct {
	Handled   bool
	Credited  bool
	PaymentID uuid.UUID
	Amount    decimal.Decimal
}

type Service struct {
	store  PurchaseStore
	ledger Ledger
	logger *slog.Logger
}

func NewService(store PurchaseStore, l Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ledger: l, logger: logger}
}

// ConfirmByExternalID confirms a pending or expired purchase and appends its
// purchase entry in the same transaction. A purchase that is already
// confirmed is handled without touching the ledger.
func (s *Service) ConfirmByExternalID(ctx context.Context, externalID string, paidAt time.Time) (*Outcome, error) {
	out, err := s.confirm(ctx, externalID, paidAt, true)
	if errors.Is(err, ledger.ErrDuplicateEntry) {
		s.logger.Warn("purchase already credited, confirming status only", "external_id", externalID)
		return s.confirm(ctx, externalID, paidAt, false)
	}
	return out, err
}

func (s *Service) confirm(ctx context.Context, externalID string, paidAt time.Time, credit bool) (*Outcome, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row, err := s.store.ConfirmTx(ctx, tx, externalID, paidAt)
	if err != nil {
		return nil, fmt.Errorf("confirm purchase %s: %w", externalID, err)
	}
	if row == nil {
		exists, err := s.store.ExistsExternalID(ctx, externalID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Handled: exists}, nil
	}

	out := &Outcome{Handled: true, PaymentID: row.ID, Amount: row.Amount}
	if credit {
		paymentID := row.ID
		if _, err := s.ledger.AddCreditsTx(ctx, tx, ledger.AddCreditsInput{
			OwnerType:   row.OwnerType,
			OwnerID:     row.OwnerID,
			Amount:      row.Amount,
			EntryType:   models.CreditEntryPurchase,
			PaymentID:   &paymentID,
			Description: "Recarga de créditos " + externalID,
		}); err != nil {
			return nil, err
		}
		out.Credited = true
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("credit purchase confirmed",
		"external_id", externalID, "payment_id", row.ID, "amount", row.Amount.String(), "credited", out.Credited)
	return out, nil
}
