package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditPurchaseRow is a row of the payments table (pre-paid credit purchases).
type CreditPurchaseRow struct {
	ID           uuid.UUID
	OwnerType    string
	OwnerID      uuid.UUID
	CompanyID    *uuid.UUID
	ClientName   string
	Amount       decimal.Decimal
	Method       string
	Status       string
	ExternalID   *string
	PixCopyPaste *string
	QRCodeImage  *string
	InvoiceURL   *string
	Description  string
	CreatedAt    time.Time
	PaidAt       *time.Time
	DueDate      *time.Time
}

// ServiceOrderRow is a row of service_orders. Notes may hold a JSON blob
// with payment details written by older code paths.
type ServiceOrderRow struct {
	ID                uuid.UUID
	CompanyID         *uuid.UUID
	ClientName        string
	ServiceType       string
	Amount            decimal.Decimal
	Status            string
	PaymentMethod     string
	ExternalID        *string
	PixCopyPaste      *string
	QRCodeImage       *string
	InvoiceURL        *string
	Notes             *string
	Description       string
	SyncedFromGateway bool
	CreatedAt         time.Time
	PaidAt            *time.Time
	DueDate           *time.Time
}

// LegacyGatewayRow is a row of legacy_gateway_payments. Status holds gateway codes.
type LegacyGatewayRow struct {
	ID           uuid.UUID
	CompanyID    *uuid.UUID
	CustomerName string
	Value        decimal.Decimal
	Status       string
	BillingType  string
	GatewayID    string
	InvoiceURL   *string
	PixPayload   *string
	PixQRImage   *string
	Description  string
	RawPayload   []byte
	DateCreated  time.Time
	PaymentDate  *time.Time
	DueDate      *time.Time
}
