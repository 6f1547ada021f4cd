package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/multazero/backend/internal/apperr"
	"github.com/multazero/backend/internal/gateway"
	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/recharge"
	"github.com/multazero/backend/internal/status"
)

// AuditStore records manual status corrections.
type AuditStore interface {
	Insert(ctx context.Context, a *models.StatusAuditEntry) error
}

// Recharger confirms a credit purchase together with its ledger credit.
// *recharge.Service implements it.
type Recharger interface {
	ConfirmByExternalID(ctx context.Context, externalID string, paidAt time.Time) (*recharge.Outcome, error)
}

type OverrideInput struct {
	PaymentRef string
	Target     string
	Reason     string
	ActorID    *uuid.UUID
	// Scope restricts the override to one company; uuid.Nil allows any.
	Scope Scope
}

// Overrider applies manual status edits made by an administrator.
type Overrider struct {
	agg      *Aggregator
	creds    CredentialStore
	factory  gateway.Factory
	audit    AuditStore
	recharge Recharger
	logger   *slog.Logger
	now      func() time.Time
}

func NewOverrider(agg *Aggregator, creds CredentialStore, factory gateway.Factory, audit AuditStore, r Recharger, logger *slog.Logger) *Overrider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Overrider{agg: agg, creds: creds, factory: factory, audit: audit, recharge: r, logger: logger, now: time.Now}
}

// OverrideStatus moves a stored payment to the target status. The gateway is
// updated first when the payment has a gateway id and the company has
// credentials, so a gateway refusal leaves our row untouched.
func (o *Overrider) OverrideStatus(ctx context.Context, in OverrideInput) (*models.PaymentView, error) {
	target, err := status.Parse(in.Target)
	if err != nil {
		return nil, err
	}
	view, err := o.agg.GetPaymentDetail(ctx, in.PaymentRef)
	if err != nil {
		return nil, err
	}
	if !in.Scope.AllCompanies() && (view.CompanyID == nil || *view.CompanyID != in.Scope.CompanyID) {
		return nil, apperr.NotFoundErr("payment %s not found", in.PaymentRef)
	}

	switch status.Decide(view.Status, target) {
	case status.Noop:
		return view, nil
	case status.Reject:
		return nil, apperr.ConflictErr("cannot change payment status from %s to %s", view.Status, target)
	}
	creditsPurchase := view.Source == models.SourceCredits && target == status.Confirmed
	if creditsPurchase && view.ExternalID == "" {
		return nil, apperr.ConflictErr("credit purchase %s has no gateway id and cannot be credited", view.PaymentID)
	}

	code, err := status.ToGateway(target)
	if err != nil {
		return nil, err
	}
	if view.ExternalID != "" && view.CompanyID != nil {
		creds, err := o.creds.Get(ctx, *view.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("load gateway credentials: %w", err)
		}
		if creds != nil {
			if err := o.factory(creds).ApplyStatus(ctx, view.ExternalID, code); err != nil {
				return nil, apperr.GatewayErr(err)
			}
		} else {
			o.logger.Warn("no gateway credentials, status changed locally only",
				"payment_id", view.PaymentID, "company_id", *view.CompanyID)
		}
	}

	src := o.agg.SourceFor(view.Source)
	id, err := uuid.Parse(view.PaymentID)
	if src == nil || err != nil {
		return nil, fmt.Errorf("payment %s has no writable source %q", view.PaymentID, view.Source)
	}
	rec, err := src.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperr.NotFoundErr("payment %s not found", in.PaymentRef)
	}
	if rec.Status != view.Status {
		return nil, apperr.ConflictErr("payment %s changed concurrently, retry", view.PaymentID)
	}
	var paidAt *time.Time
	if target == status.Confirmed {
		t := o.now()
		paidAt = &t
	}
	var changed bool
	if creditsPurchase {
		changed, err = o.confirmPurchase(ctx, view.ExternalID, *paidAt)
	} else {
		changed, err = src.UpdateStatus(ctx, rec, target, paidAt)
	}
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, apperr.ConflictErr("payment %s changed concurrently, retry", view.PaymentID)
	}

	entry := &models.StatusAuditEntry{
		ID:         uuid.New(),
		Source:     view.Source,
		PaymentID:  id,
		ExternalID: view.ExternalID,
		OldStatus:  view.Status,
		NewStatus:  target,
		ActorID:    in.ActorID,
		Reason:     strings.TrimSpace(in.Reason),
	}
	if entry.Reason == "" {
		entry.Reason = "manual status change"
	}
	if err := o.audit.Insert(ctx, entry); err != nil {
		o.logger.Warn("status audit insert failed", "payment_id", view.PaymentID, "error", err)
	}
	o.logger.Info("payment status overridden",
		"payment_id", view.PaymentID, "source", view.Source, "from", view.Status, "to", target)

	view.Status = target
	if paidAt != nil {
		view.PaidAt = paidAt
	}
	return view, nil
}

// confirmPurchase moves a credit purchase to confirmed through the recharge
// flow so the ledger credit lands in the same transaction.
func (o *Overrider) confirmPurchase(ctx context.Context, externalID string, paidAt time.Time) (bool, error) {
	out, err := o.recharge.ConfirmByExternalID(ctx, externalID, paidAt)
	if err != nil {
		return false, err
	}
	return out.PaymentID != uuid.Nil, nil
}
