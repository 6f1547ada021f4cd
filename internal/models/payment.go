package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/multazero/backend/internal/status"
)

// Source identifies which storage collection a payment row lives in.
// The declaration order is the deduplication priority.
type Source string

const (
	SourceCredits       Source = "credits"
	SourceServiceCharge Source = "service_charge"
	SourceLegacyGateway Source = "legacy_gateway"
	SourceGateway       Source = "gateway"
)

// Priority returns the dedup rank of a source; lower wins.
func (s Source) Priority() int {
	switch s {
	case SourceCredits:
		return 0
	case SourceServiceCharge:
		return 1
	case SourceLegacyGateway:
		return 2
	default:
		return 3
	}
}

// PaymentView is the canonical read-only projection of a payment row.
type PaymentView struct {
	PaymentID    string          `json:"payment_id"`
	ExternalID   string          `json:"external_id,omitempty"`
	Source       Source          `json:"source"`
	CompanyID    *uuid.UUID      `json:"company_id,omitempty"`
	ClientName   string          `json:"client_name"`
	Amount       decimal.Decimal `json:"amount"`
	Status       status.Status   `json:"status"`
	Method       string          `json:"method"`
	QRCode       *string         `json:"qr_code"`
	PixCopyPaste *string         `json:"pix_copy_paste"`
	InvoiceURL   *string         `json:"invoice_url"`
	Description  string          `json:"description"`
	MultaType    string          `json:"multa_type,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
}

// DedupKey is the external id when present, otherwise a source-qualified internal id.
func (v PaymentView) DedupKey() string {
	if v.ExternalID != "" {
		return "ext:" + v.ExternalID
	}
	return "id:" + string(v.Source) + ":" + v.PaymentID
}

// PaymentRecord is the write-path handle of a stored payment row.
// RawStatus is the value as stored, used for compare-and-set updates.
type PaymentRecord struct {
	ID         uuid.UUID
	Source     Source
	ExternalID string
	CompanyID  *uuid.UUID
	Status     status.Status
	RawStatus  string
	PaidAt     *time.Time
}

// StatusAuditEntry records a manual status correction.
type StatusAuditEntry struct {
	ID         uuid.UUID     `json:"id"`
	Source     Source        `json:"source"`
	PaymentID  uuid.UUID     `json:"payment_id"`
	ExternalID string        `json:"external_id,omitempty"`
	OldStatus  status.Status `json:"old_status"`
	NewStatus  status.Status `json:"new_status"`
	ActorID    *uuid.UUID    `json:"actor_id,omitempty"`
	Reason     string        `json:"reason"`
	CreatedAt  time.Time     `json:"created_at"`
}

// GatewayCredentials are a company's credentials for the payment gateway.
type GatewayCredentials struct {
	CompanyID    uuid.UUID
	APIKey       string
	BaseURL      string
	WebhookToken string
}
