package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/multazero/backend/internal/apperr"
	"github.com/multazero/backend/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ErrDuplicateEntry is returned when a purchase entry for the same payment already exists.
var ErrDuplicateEntry = errDuplicateEntry

// Store is the persistence the ledger needs. *Repository implements it.
type Store interface {
	Insert(ctx context.Context, e *models.CreditLedgerEntry) error
	InsertTx(ctx context.Context, tx pgx.Tx, e *models.CreditLedgerEntry) error
	Sum(ctx context.Context, ownerType string, ownerID uuid.UUID) (decimal.Decimal, error)
	List(ctx context.Context, ownerType string, ownerID uuid.UUID, limit, offset int) ([]*models.CreditLedgerEntry, error)
}

// AddCreditsInput describes a positive balance movement.
type AddCreditsInput struct {
	OwnerType   string
	OwnerID     uuid.UUID
	Amount      decimal.Decimal
	EntryType   string
	PaymentID   *uuid.UUID
	ActorID     *uuid.UUID
	Description string
}

type Service interface {
	GetBalance(ctx context.Context, ownerType string, ownerID uuid.UUID) (decimal.Decimal, error)
	AddCredits(ctx context.Context, in AddCreditsInput) (*models.CreditLedgerEntry, error)
	AddCreditsTx(ctx context.Context, tx pgx.Tx, in AddCreditsInput) (*models.CreditLedgerEntry, error)
	Adjust(ctx context.Context, in AddCreditsInput) (*models.CreditLedgerEntry, error)
	GetTransactionHistory(ctx context.Context, ownerType string, ownerID uuid.UUID, limit, offset int) ([]*models.CreditLedgerEntry, error)
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

func (s *service) GetBalance(ctx context.Context, ownerType string, ownerID uuid.UUID) (decimal.Decimal, error) {
	if err := validateOwner(ownerType, ownerID); err != nil {
		return decimal.Zero, err
	}
	return s.store.Sum(ctx, ownerType, ownerID)
}

// AddCredits appends a positive entry. It never looks for an existing entry to update.
func (s *service) AddCredits(ctx context.Context, in AddCreditsInput) (*models.CreditLedgerEntry, error) {
	e, err := newCreditEntry(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// AddCreditsTx is AddCredits inside the caller's transaction.
func (s *service) AddCreditsTx(ctx context.Context, tx pgx.Tx, in AddCreditsInput) (*models.CreditLedgerEntry, error) {
	e, err := newCreditEntry(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertTx(ctx, tx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Adjust appends a signed offsetting entry. A description is mandatory so
// every correction is explained in the history.
func (s *service) Adjust(ctx context.Context, in AddCreditsInput) (*models.CreditLedgerEntry, error) {
	if err := validateOwner(in.OwnerType, in.OwnerID); err != nil {
		return nil, err
	}
	if in.Amount.IsZero() {
		return nil, apperr.ValidationErr("adjustment amount must not be zero")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, apperr.ValidationErr("adjustment requires a description")
	}
	e := &models.CreditLedgerEntry{
		ID:          uuid.New(),
		OwnerType:   in.OwnerType,
		OwnerID:     in.OwnerID,
		EntryType:   models.CreditEntryAdjustment,
		Amount:      in.Amount,
		PaymentID:   in.PaymentID,
		ActorID:     in.ActorID,
		Description: strings.TrimSpace(in.Description),
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *service) GetTransactionHistory(ctx context.Context, ownerType string, ownerID uuid.UUID, limit, offset int) ([]*models.CreditLedgerEntry, error) {
	if err := validateOwner(ownerType, ownerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, ownerType, ownerID, limit, offset)
}

func newCreditEntry(in AddCreditsInput) (*models.CreditLedgerEntry, error) {
	if err := validateOwner(in.OwnerType, in.OwnerID); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.ValidationErr("amount must be > 0")
	}
	entryType := in.EntryType
	if entryType == "" {
		entryType = models.CreditEntryGrant
	}
	if entryType != models.CreditEntryGrant && entryType != models.CreditEntryPurchase {
		return nil, apperr.ValidationErr("invalid entry type %q", entryType)
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		desc = "credit " + entryType
	}
	return &models.CreditLedgerEntry{
		ID:          uuid.New(),
		OwnerType:   in.OwnerType,
		OwnerID:     in.OwnerID,
		EntryType:   entryType,
		Amount:      in.Amount,
		PaymentID:   in.PaymentID,
		ActorID:     in.ActorID,
		Description: desc,
	}, nil
}

func validateOwner(ownerType string, ownerID uuid.UUID) error {
	if !models.ValidOwnerType(ownerType) {
		return apperr.ValidationErr("owner type must be %q or %q", models.OwnerClient, models.OwnerCompany)
	}
	if ownerID == uuid.Nil {
		return apperr.ValidationErr("owner id is required")
	}
	return nil
}
