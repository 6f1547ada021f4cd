// Package webhook converges stored payments with gateway push notifications.
package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/multazero/backend/internal/apperr"
	"github.com/multazero/backend/internal/gateway"
	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/payments"
	"github.com/multazero/backend/internal/recharge"
	"github.com/multazero/backend/internal/status"
)

// Gateway event types.
const (
	EventPaymentConfirmed           = "PAYMENT_CONFIRMED"
	EventPaymentReceived            = "PAYMENT_RECEIVED"
	EventPaymentUpdated             = "PAYMENT_UPDATED"
	EventPaymentDeleted             = "PAYMENT_DELETED"
	EventPaymentOverdue             = "PAYMENT_OVERDUE"
	EventPaymentRefunded            = "PAYMENT_REFUNDED"
	EventPaymentRefundInProgress    = "PAYMENT_REFUND_IN_PROGRESS"
	EventChargebackRequested        = "PAYMENT_CHARGEBACK_REQUESTED"
	EventChargebackDispute          = "PAYMENT_CHARGEBACK_DISPUTE"
	EventAwaitingChargebackReversal = "PAYMENT_AWAITING_CHARGEBACK_REVERSAL"
)

// Dispatch outcomes recorded in webhook_event_log.
const (
	OutcomeCredited         = "credited"
	OutcomeAlreadyConfirmed = "already_confirmed"
	OutcomeUpdated          = "updated"
	OutcomeNoop             = "noop"
	OutcomeRejected         = "rejected_transition"
	OutcomeUnknownPayment   = "unknown_payment"
	OutcomeMissingPayment   = "missing_payment"
	OutcomeIgnoredType      = "ignored_event_type"
	OutcomeIgnoredStatus    = "ignored_status"
	OutcomeMalformed        = "malformed_payload"
	OutcomeError            = "error"
)

const maxCASAttempts = 3

// ErrMalformedPayload is returned by Handle for bodies that fail the schema
// or do not decode. Errors from dispatch never wrap it.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Event is the notification body posted by the gateway.
type Event struct {
	ID          string           `json:"id"`
	Event       string           `json:"event"`
	DateCreated string           `json:"dateCreated"`
	Payment     *gateway.Payment `json:"payment"`
}

type Recharger interface {
	ConfirmByExternalID(ctx context.Context, externalID string, paidAt time.Time) (*recharge.Outcome, error)
}

// PaymentLocator finds the stored row for an external id. *payments.Aggregator implements it.
type PaymentLocator interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, payments.StoredSource, error)
}

type EventLog interface {
	Insert(ctx context.Context, e *models.WebhookEventLogEntry) error
}

type Processor struct {
	recharge Recharger
	payments PaymentLocator
	events   EventLog
	logger   *slog.Logger
	now      func() time.Time
}

func NewProcessor(r Recharger, locator PaymentLocator, events EventLog, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{recharge: r, payments: locator, events: events, logger: logger, now: time.Now}
}

// Handle processes one raw notification and records it. Unknown event types
// and unknown payments are not errors. A returned error means the gateway
// should retry; malformed bodies return ErrMalformedPayload.
func (p *Processor) Handle(ctx context.Context, raw []byte) (string, error) {
	var ev Event
	if err := validateShape(raw); err != nil {
		p.logger.Warn("webhook payload rejected", "error", err)
		p.record(ctx, raw, nil, OutcomeMalformed)
		return OutcomeMalformed, ErrMalformedPayload
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		p.record(ctx, raw, nil, OutcomeMalformed)
		return OutcomeMalformed, ErrMalformedPayload
	}

	outcome, err := p.dispatch(ctx, &ev)
	if err != nil {
		p.logger.Error("webhook dispatch failed", "event", ev.Event, "event_id", ev.ID, "external_id", externalID(&ev), "error", err)
		p.record(ctx, raw, &ev, OutcomeError+": "+err.Error())
		return OutcomeError, err
	}
	p.logger.Info("webhook processed", "event", ev.Event, "event_id", ev.ID, "external_id", externalID(&ev), "outcome", outcome)
	p.record(ctx, raw, &ev, outcome)
	return outcome, nil
}

func (p *Processor) dispatch(ctx context.Context, ev *Event) (string, error) {
	var target status.Status
	switch ev.Event {
	case EventPaymentConfirmed, EventPaymentReceived:
		target = status.Confirmed
	case EventPaymentUpdated:
		if ev.Payment == nil || status.FromGateway(ev.Payment.Status) != status.Confirmed {
			return OutcomeIgnoredStatus, nil
		}
		target = status.Confirmed
	case EventPaymentDeleted:
		target = status.Cancelled
	case EventPaymentOverdue:
		target = status.Expired
	case EventPaymentRefunded, EventPaymentRefundInProgress, EventChargebackRequested,
		EventChargebackDispute, EventAwaitingChargebackReversal:
		target = status.Refunded
	default:
		return OutcomeIgnoredType, nil
	}

	ext := externalID(ev)
	if ext == "" {
		return OutcomeMissingPayment, nil
	}
	if target != status.Confirmed {
		return p.converge(ctx, ext, target, nil)
	}

	paidAt := p.now()
	if t := ev.Payment.PaidAt(); t != nil {
		paidAt = *t
	}
	out, err := p.recharge.ConfirmByExternalID(ctx, ext, paidAt)
	if err != nil {
		return "", err
	}
	if out.Handled {
		if out.Credited {
			return OutcomeCredited, nil
		}
		return OutcomeAlreadyConfirmed, nil
	}
	return p.converge(ctx, ext, status.Confirmed, &paidAt)
}

// converge moves the stored row toward target with compare-and-set updates,
// re-reading when a concurrent delivery changed the row first.
func (p *Processor) converge(ctx context.Context, ext string, target status.Status, paidAt *time.Time) (string, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		rec, src, err := p.payments.FindByExternalID(ctx, ext)
		if err != nil {
			return "", err
		}
		if rec == nil {
			return OutcomeUnknownPayment, nil
		}
		switch status.Decide(rec.Status, target) {
		case status.Noop:
			return OutcomeNoop, nil
		case status.Reject:
			p.logger.Info("webhook transition rejected", "external_id", ext, "from", rec.Status, "to", target)
			return OutcomeRejected, nil
		}
		ok, err := src.UpdateStatus(ctx, rec, target, paidAt)
		if err != nil {
			return "", err
		}
		if ok {
			return OutcomeUpdated, nil
		}
	}
	return "", apperr.ConflictErr("payment %s kept changing, giving up after %d attempts", ext, maxCASAttempts)
}

// record appends the event to the log. Failures are logged and swallowed.
func (p *Processor) record(ctx context.Context, raw []byte, ev *Event, outcome string) {
	entry := &models.WebhookEventLogEntry{
		ID:              uuid.New(),
		EventID:         eventID(raw, ev),
		DispatchOutcome: outcome,
	}
	if ev != nil {
		entry.EventType = ev.Event
		entry.ExternalID = externalID(ev)
		entry.RawPayload = json.RawMessage(raw)
	}
	if err := p.events.Insert(ctx, entry); err != nil {
		p.logger.Warn("webhook event log insert failed", "event_id", entry.EventID, "error", err)
	}
}

// eventID is the gateway's event id, or a content hash when it sent none.
func eventID(raw []byte, ev *Event) string {
	if ev != nil && ev.ID != "" {
		return ev.ID
	}
	sum := sha256.Sum256(raw)
	return "hash:" + hex.EncodeToString(sum[:])
}

func externalID(ev *Event) string {
	if ev.Payment == nil {
		return ""
	}
	return ev.Payment.ID
}
