// Package gatewaysync pulls payments from the gateway into service_orders.
package gatewaysync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/multazero/backend/internal/apperr"
	"github.com/multazero/backend/internal/gateway"
	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/payments"
	"github.com/multazero/backend/internal/status"
)

const (
	DefaultPageSize = 100
	DefaultMaxPages = 20
)

// PaymentIndex answers where an external id is already stored. *payments.Aggregator implements it.
type PaymentIndex interface {
	ExistsExternalID(ctx context.Context, externalID string) (bool, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, payments.StoredSource, error)
}

// ServiceOrderWriter persists pulled payments. *repository.ServiceOrderRepo implements it.
type ServiceOrderWriter interface {
	InsertSynced(ctx context.Context, o *models.ServiceOrderRow) (bool, error)
	UpsertFromGateway(ctx context.Context, o *models.ServiceOrderRow) (uuid.UUID, bool, error)
}

type Config struct {
	PageSize int
	MaxPages int
}

type Synchronizer struct {
	creds    payments.CredentialStore
	factory  gateway.Factory
	index    PaymentIndex
	orders   ServiceOrderWriter
	audit    payments.AuditStore
	recharge payments.Recharger
	pageSize int
	maxPages int
	logger   *slog.Logger
	now      func() time.Time
}

func New(creds payments.CredentialStore, factory gateway.Factory, index PaymentIndex, orders ServiceOrderWriter, audit payments.AuditStore, r payments.Recharger, cfg Config, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	return &Synchronizer{
		creds:    creds,
		factory:  factory,
		index:    index,
		orders:   orders,
		audit:    audit,
		recharge: r,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
		logger:   logger,
		now:      time.Now,
	}
}

// SyncCompany pulls the company's gateway payments and inserts the ones not
// stored anywhere yet. Missing credentials are reported in the result, not as
// an error. A listing failure part way stops paging; what was fetched is
// still processed and the failure is reported as Warning.
func (s *Synchronizer) SyncCompany(ctx context.Context, companyID uuid.UUID) (*SyncResult, error) {
	res := &SyncResult{CompanyID: companyID}
	creds, err := s.creds.Get(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load gateway credentials: %w", err)
	}
	if creds == nil {
		s.logger.Info("sync skipped, company has no gateway credentials", "company_id", companyID)
		res.CredentialsMissing = true
		return res, nil
	}

	client := s.factory(creds)
	var fetched []gateway.Payment
	for page := 0; page < s.maxPages; page++ {
		list, err := client.ListPayments(ctx, page*s.pageSize, s.pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Warning = fmt.Sprintf("gateway listing stopped after %d payments: %v", len(fetched), err)
			s.logger.Warn("gateway listing failed, processing partial page set",
				"company_id", companyID, "fetched", len(fetched), "error", err)
			break
		}
		fetched = append(fetched, list.Data...)
		if !list.HasMore || len(list.Data) == 0 {
			break
		}
		if page == s.maxPages-1 {
			res.Warning = fmt.Sprintf("stopped at page cap (%d pages of %d)", s.maxPages, s.pageSize)
		}
	}
	res.Pulled = len(fetched)

	rows := make([]rowResult, 0, len(fetched))
	for i := range fetched {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := s.syncRow(ctx, companyID, &fetched[i])
		if r.outcome == outcomeFailed {
			s.logger.Warn("gateway payment sync failed",
				"company_id", companyID, "external_id", r.externalID, "error", r.err)
		}
		rows = append(rows, r)
	}
	res.fold(rows)

	s.logger.Info("gateway sync finished",
		"company_id", companyID,
		"pulled", res.Pulled,
		"inserted", res.Inserted,
		"already_existed", res.AlreadyExisted,
		"failed", res.Failed,
	)
	return res, nil
}

func (s *Synchronizer) syncRow(ctx context.Context, companyID uuid.UUID, p *gateway.Payment) rowResult {
	r := rowResult{externalID: p.ID}
	if strings.TrimSpace(p.ID) == "" {
		r.outcome, r.err = outcomeFailed, errors.New("gateway payment without id")
		return r
	}
	exists, err := s.index.ExistsExternalID(ctx, p.ID)
	if err != nil {
		r.outcome, r.err = outcomeFailed, err
		return r
	}
	if exists {
		r.outcome = outcomeExisted
		return r
	}
	inserted, err := s.orders.InsertSynced(ctx, s.newServiceOrder(companyID, p))
	switch {
	case err != nil:
		r.outcome, r.err = outcomeFailed, err
	case inserted:
		r.outcome = outcomeInserted
	default:
		r.outcome = outcomeExisted
	}
	return r
}

// SyncSinglePayment makes our copy of one payment match the gateway. The
// gateway is authoritative: the stored status is overwritten even when the
// move would not be accepted from a webhook.
func (s *Synchronizer) SyncSinglePayment(ctx context.Context, externalID string, companyID uuid.UUID, actorID *uuid.UUID) (*SingleSyncResult, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperr.ValidationErr("payment id is required")
	}
	creds, err := s.creds.Get(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load gateway credentials: %w", err)
	}
	if creds == nil {
		return nil, apperr.CredentialMissingErr(companyID)
	}

	client := s.factory(creds)
	p, err := client.GetPayment(ctx, externalID)
	if errors.Is(err, gateway.ErrPaymentNotFound) {
		return nil, apperr.NotFoundErr("payment %s not found at gateway", externalID)
	}
	if err != nil {
		return nil, apperr.GatewayErr(err)
	}

	next := status.FromGateway(p.Status)
	paidAt := p.PaidAt()
	if next == status.Confirmed && paidAt == nil {
		t := s.now()
		paidAt = &t
	}
	res := &SingleSyncResult{ExternalID: externalID, Status: next, GatewayStatus: p.Status}

	rec, src, err := s.index.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.Source != models.SourceServiceCharge {
		res.Source, res.PaymentID, res.PreviousStatus = rec.Source, rec.ID, rec.Status
		if rec.Status != next {
			changed, err := s.moveStored(ctx, rec, src, next, paidAt)
			if err != nil {
				return nil, err
			}
			res.Changed = changed
		}
	} else {
		row := s.newServiceOrder(companyID, p)
		row.PaidAt = paidAt
		if next == status.Pending && strings.EqualFold(p.BillingType, "PIX") {
			if qr, err := client.GetPixQRCode(ctx, externalID); err != nil {
				s.logger.Warn("pix qr code fetch failed", "external_id", externalID, "error", err)
			} else if qr.Payload != "" {
				row.PixCopyPaste = &qr.Payload
			}
		}
		id, inserted, err := s.orders.UpsertFromGateway(ctx, row)
		if err != nil {
			return nil, err
		}
		res.Source, res.PaymentID, res.Inserted = models.SourceServiceCharge, id, inserted
		if rec != nil {
			res.PreviousStatus = rec.Status
			res.Changed = rec.Status != next
		} else {
			res.Changed = true
		}
	}

	if res.Changed && res.PreviousStatus != "" {
		entry := &models.StatusAuditEntry{
			ID:         uuid.New(),
			Source:     res.Source,
			PaymentID:  res.PaymentID,
			ExternalID: externalID,
			OldStatus:  res.PreviousStatus,
			NewStatus:  next,
			ActorID:    actorID,
			Reason:     "force sync from gateway (" + p.Status + ")",
		}
		if err := s.audit.Insert(ctx, entry); err != nil {
			s.logger.Warn("status audit insert failed", "external_id", externalID, "error", err)
		}
	}
	s.logger.Info("payment force-synced",
		"external_id", externalID, "source", res.Source, "status", next, "changed", res.Changed)
	return res, nil
}

// moveStored writes next onto a row owned by another source. A credit
// purchase reaching confirmed goes through the recharge flow so its ledger
// credit is written with the status change; a purchase that flow refuses
// (cancelled or refunded locally) is left as it is.
func (s *Synchronizer) moveStored(ctx context.Context, rec *models.PaymentRecord, src payments.StoredSource, next status.Status, paidAt *time.Time) (bool, error) {
	if rec.Source == models.SourceCredits && next == status.Confirmed {
		out, err := s.recharge.ConfirmByExternalID(ctx, rec.ExternalID, *paidAt)
		if err != nil {
			return false, err
		}
		if out.PaymentID == uuid.Nil {
			s.logger.Warn("credit purchase not confirmable, left unchanged",
				"external_id", rec.ExternalID, "status", rec.Status)
			return false, nil
		}
		return true, nil
	}
	if err := src.SetStatus(ctx, rec, next, paidAt); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Synchronizer) newServiceOrder(companyID uuid.UUID, p *gateway.Payment) *models.ServiceOrderRow {
	desc := gateway.ParseDescription(p.Description)
	ext := p.ID
	row := &models.ServiceOrderRow{
		ID:            uuid.New(),
		ClientName:    desc.ClientName,
		ServiceType:   desc.MultaType,
		Amount:        p.Value,
		Status:        string(status.FromGateway(p.Status)),
		PaymentMethod: p.BillingType,
		ExternalID:    &ext,
		Description:   p.Description,
		CreatedAt:     p.CreatedAt(),
		PaidAt:        p.PaidAt(),
		DueDate:       p.Due(),
	}
	if companyID != uuid.Nil {
		row.CompanyID = &companyID
	}
	if p.InvoiceURL != "" {
		url := p.InvoiceURL
		row.InvoiceURL = &url
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	return row
}
