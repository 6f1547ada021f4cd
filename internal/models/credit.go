package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Owner types for credit balances.
const (
	OwnerClient  = "client"
	OwnerCompany = "company"
)

// Credit ledger entry_type values.
const (
	CreditEntryPurchase   = "purchase"
	CreditEntryGrant      = "grant"
	CreditEntryAdjustment = "adjustment"
)

// ValidOwnerType reports whether t names a credit owner.
func ValidOwnerType(t string) bool {
	return t == OwnerClient || t == OwnerCompany
}

// CreditLedgerEntry is one immutable balance movement. Amount is signed.
type CreditLedgerEntry struct {
	ID          uuid.UUID       `json:"id"`
	OwnerType   string          `json:"owner_type"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	EntryType   string          `json:"entry_type"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentID   *uuid.UUID      `json:"payment_id,omitempty"`
	ActorID     *uuid.UUID      `json:"actor_id,omitempty"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
