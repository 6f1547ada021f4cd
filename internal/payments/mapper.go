package payments

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/multazero/backend/internal/gateway"
	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/status"
)

const (
	creditPurchaseDescription = "Compra de créditos"
	defaultMethod             = "PIX"
)

// Keys older writers used for payment details inside JSON blobs.
var (
	qrCodeKeys       = []string{"qrCode", "qr_code", "pixQrCode", "encodedImage", "qrCodeImage"}
	pixCopyPasteKeys = []string{"pixCopyPaste", "pix_copy_paste", "pixCopiaECola", "payload", "copyPaste"}
	invoiceURLKeys   = []string{"invoiceUrl", "invoice_url", "bankSlipUrl", "paymentLink"}
)

func MapCreditPurchase(r *models.CreditPurchaseRow) models.PaymentView {
	v := models.PaymentView{
		PaymentID:    r.ID.String(),
		ExternalID:   deref(r.ExternalID),
		Source:       models.SourceCredits,
		CompanyID:    r.CompanyID,
		ClientName:   r.ClientName,
		Amount:       r.Amount,
		Status:       status.FromStored(r.Status),
		Method:       orDefault(r.Method, defaultMethod),
		QRCode:       nonEmpty(r.QRCodeImage),
		PixCopyPaste: nonEmpty(r.PixCopyPaste),
		InvoiceURL:   nonEmpty(r.InvoiceURL),
		Description:  orDefault(r.Description, creditPurchaseDescription),
		CreatedAt:    r.CreatedAt,
		PaidAt:       r.PaidAt,
		DueDate:      r.DueDate,
	}
	if v.ClientName == "" {
		v.ClientName = gateway.DefaultClientName
	}
	return v
}

// MapServiceOrder falls back to the notes JSON blob for QR code, PIX payload
// and invoice URL when the structured columns are empty. Unreadable notes
// leave those fields nil.
func MapServiceOrder(r *models.ServiceOrderRow) models.PaymentView {
	notes := decodeBlob(deref(r.Notes))
	v := models.PaymentView{
		PaymentID:    r.ID.String(),
		ExternalID:   deref(r.ExternalID),
		Source:       models.SourceServiceCharge,
		CompanyID:    r.CompanyID,
		ClientName:   orDefault(r.ClientName, gateway.DefaultClientName),
		Amount:       r.Amount,
		Status:       status.FromStored(r.Status),
		Method:       orDefault(r.PaymentMethod, defaultMethod),
		QRCode:       firstOf(nonEmpty(r.QRCodeImage), pick(notes, qrCodeKeys)),
		PixCopyPaste: firstOf(nonEmpty(r.PixCopyPaste), pick(notes, pixCopyPasteKeys)),
		InvoiceURL:   firstOf(nonEmpty(r.InvoiceURL), pick(notes, invoiceURLKeys)),
		Description:  r.Description,
		MultaType:    orDefault(r.ServiceType, gateway.DefaultMultaType),
		CreatedAt:    r.CreatedAt,
		PaidAt:       r.PaidAt,
		DueDate:      r.DueDate,
	}
	return v
}

// MapLegacyGateway maps a mirrored gateway row. Its status column holds gateway codes.
func MapLegacyGateway(r *models.LegacyGatewayRow) models.PaymentView {
	raw := decodeBlob(string(r.RawPayload))
	desc := gateway.ParseDescription(r.Description)
	v := models.PaymentView{
		PaymentID:    r.ID.String(),
		ExternalID:   r.GatewayID,
		Source:       models.SourceLegacyGateway,
		CompanyID:    r.CompanyID,
		ClientName:   orDefault(r.CustomerName, desc.ClientName),
		Amount:       r.Value,
		Status:       status.FromStored(r.Status),
		Method:       orDefault(r.BillingType, defaultMethod),
		QRCode:       firstOf(nonEmpty(r.PixQRImage), pick(raw, qrCodeKeys)),
		PixCopyPaste: firstOf(nonEmpty(r.PixPayload), pick(raw, pixCopyPasteKeys)),
		InvoiceURL:   firstOf(nonEmpty(r.InvoiceURL), pick(raw, invoiceURLKeys)),
		Description:  r.Description,
		MultaType:    desc.MultaType,
		CreatedAt:    r.DateCreated,
		PaidAt:       r.PaymentDate,
		DueDate:      r.DueDate,
	}
	return v
}

// MapGatewayPayment maps a payment fetched live from the gateway.
func MapGatewayPayment(p *gateway.Payment, companyID uuid.UUID) models.PaymentView {
	desc := gateway.ParseDescription(p.Description)
	v := models.PaymentView{
		PaymentID:   p.ID,
		ExternalID:  p.ID,
		Source:      models.SourceGateway,
		ClientName:  desc.ClientName,
		Amount:      p.Value,
		Status:      status.FromGateway(p.Status),
		Method:      orDefault(p.BillingType, defaultMethod),
		InvoiceURL:  nonEmpty(&p.InvoiceURL),
		Description: p.Description,
		MultaType:   desc.MultaType,
		CreatedAt:   p.CreatedAt(),
		PaidAt:      p.PaidAt(),
		DueDate:     p.Due(),
	}
	if companyID != uuid.Nil {
		v.CompanyID = &companyID
	}
	return v
}

// decodeBlob reads a JSON object. Anything else yields nil.
func decodeBlob(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] != '{' {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

func pick(m map[string]any, keys []string) *string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return &s
		}
	}
	return nil
}

func firstOf(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
