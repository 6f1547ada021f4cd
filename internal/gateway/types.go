package gateway

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Payment is a charge as returned by the gateway API.
type Payment struct {
	ID                string          `json:"id"`
	Customer          string          `json:"customer"`
	Value             decimal.Decimal `json:"value"`
	NetValue          decimal.Decimal `json:"netValue"`
	Status            string          `json:"status"`
	BillingType       string          `json:"billingType"`
	Description       string          `json:"description"`
	InvoiceURL        string          `json:"invoiceUrl"`
	ExternalReference string          `json:"externalReference"`
	DateCreated       string          `json:"dateCreated"`
	DueDate           string          `json:"dueDate"`
	PaymentDate       string          `json:"paymentDate"`
	ClientPaymentDate string          `json:"clientPaymentDate"`
	Deleted           bool            `json:"deleted"`
}

// PaymentList is one page of the payments listing.
type PaymentList struct {
	Object     string    `json:"object"`
	HasMore    bool      `json:"hasMore"`
	TotalCount int       `json:"totalCount"`
	Limit      int       `json:"limit"`
	Offset     int       `json:"offset"`
	Data       []Payment `json:"data"`
}

// PixQRCode holds the PIX copy-paste payload and the base64 QR image.
type PixQRCode struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

// CreatedAt parses DateCreated, falling back to the zero time.
func (p Payment) CreatedAt() time.Time {
	if t := parseDate(p.DateCreated); t != nil {
		return *t
	}
	return time.Time{}
}

// PaidAt prefers the settlement date and falls back to the date the client paid.
func (p Payment) PaidAt() *time.Time {
	if t := parseDate(p.PaymentDate); t != nil {
		return t
	}
	return parseDate(p.ClientPaymentDate)
}

func (p Payment) Due() *time.Time {
	return parseDate(p.DueDate)
}

func parseDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := cast.ToTimeE(raw)
	if err != nil {
		return nil
	}
	return &t
}
