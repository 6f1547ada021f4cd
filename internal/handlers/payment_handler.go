package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/multazero/backend/internal/apperr"
	"github.com/multazero/backend/internal/auth"
	"github.com/multazero/backend/internal/gatewaysync"
	"github.com/multazero/backend/internal/middleware"
	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/payments"
	"github.com/multazero/backend/internal/status"
)

// PaymentReader is the read side of *payments.Aggregator.
type PaymentReader interface {
	ListPayments(ctx context.Context, scope payments.Scope, f payments.Filters, p payments.Page, includeGateway bool) (*payments.PagedResult, error)
	GetPaymentDetail(ctx context.Context, ref string) (*models.PaymentView, error)
}

type StatusOverrider interface {
	OverrideStatus(ctx context.Context, in payments.OverrideInput) (*models.PaymentView, error)
}

// Syncer is implemented by *gatewaysync.Synchronizer.
type Syncer interface {
	SyncCompany(ctx context.Context, companyID uuid.UUID) (*gatewaysync.SyncResult, error)
	SyncSinglePayment(ctx context.Context, externalID string, companyID uuid.UUID, actorID *uuid.UUID) (*gatewaysync.SingleSyncResult, error)
}

// PaymentHandler serves /payments and /force-sync.
type PaymentHandler struct {
	Payments  PaymentReader
	Overrider StatusOverrider
	Sync      Syncer
	Logger    *slog.Logger
}

type listPaymentsResponse struct {
	*payments.PagedResult
	Page int `json:"page"`
}

// ListPayments handles GET /payments.
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	q := r.URL.Query()

	scope, err := requestScope(p, q.Get("companyId"))
	if err != nil {
		writeError(w, h.log(), err, "list payments")
		return
	}
	filters, err := parseFilters(q.Get("status"), q.Get("clientName"), q.Get("paymentId"), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		writeError(w, h.log(), err, "list payments")
		return
	}
	page, limit, err := parsePage(q.Get("page"), q.Get("limit"))
	if err != nil {
		writeError(w, h.log(), err, "list payments")
		return
	}
	includeGateway := cast.ToBool(q.Get("includeGateway"))

	res, err := h.Payments.ListPayments(r.Context(), scope, filters, payments.Page{Limit: limit, Offset: (page - 1) * limit}, includeGateway)
	if err != nil {
		writeError(w, h.log(), err, "list payments")
		return
	}
	writeJSON(w, http.StatusOK, listPaymentsResponse{PagedResult: res, Page: page})
}

// GetPayment handles GET /payments/{id}. Company callers only see their own payments.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	ref := r.PathValue("id")
	view, err := h.Payments.GetPaymentDetail(r.Context(), ref)
	if err != nil {
		writeError(w, h.log(), err, "get payment")
		return
	}
	if !p.IsAdmin() && (view.CompanyID == nil || *view.CompanyID != p.CompanyID) {
		writeError(w, h.log(), apperr.NotFoundErr("payment %s not found", ref), "get payment")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// UpdateStatus handles PUT /payments/{id}/status (admin).
func (h *PaymentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log(), err, "update payment status")
		return
	}
	actor := p.Subject
	view, err := h.Overrider.OverrideStatus(r.Context(), payments.OverrideInput{
		PaymentRef: r.PathValue("id"),
		Target:     req.Status,
		Reason:     req.Reason,
		ActorID:    &actor,
	})
	if err != nil {
		writeError(w, h.log(), err, "update payment status")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SyncCompany handles POST /payments/sync/{companyId} (admin). Missing
// credentials are a hard failure here even though the scheduled sync skips them.
func (h *PaymentHandler) SyncCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(r.PathValue("companyId"))
	if err != nil {
		http.Error(w, `{"error":"invalid companyId"}`, http.StatusBadRequest)
		return
	}
	res, err := h.Sync.SyncCompany(r.Context(), companyID)
	if err != nil {
		writeError(w, h.log(), err, "sync company")
		return
	}
	if res.CredentialsMissing {
		writeError(w, h.log(), apperr.CredentialMissingErr(companyID), "sync company")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type forceSyncRequest struct {
	CompanyID string `json:"companyId" validate:"required,uuid"`
}

// ForceSync handles POST /force-sync/{paymentId} (admin).
func (h *PaymentHandler) ForceSync(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req forceSyncRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log(), err, "force sync")
		return
	}
	companyID := uuid.MustParse(req.CompanyID)
	actor := p.Subject
	res, err := h.Sync.SyncSinglePayment(r.Context(), r.PathValue("paymentId"), companyID, &actor)
	if err != nil {
		writeError(w, h.log(), err, "force sync")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// requestScope resolves the company a caller may list. Company callers are
// pinned to their own company whatever they ask for.
func requestScope(p *auth.Principal, requested string) (payments.Scope, error) {
	if !p.IsAdmin() {
		return payments.Scope{CompanyID: p.CompanyID}, nil
	}
	if strings.TrimSpace(requested) == "" {
		return payments.Scope{}, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(requested))
	if err != nil {
		return payments.Scope{}, apperr.ValidationErr("invalid companyId")
	}
	return payments.Scope{CompanyID: id}, nil
}

func parseFilters(st, clientName, paymentID, start, end string) (payments.Filters, error) {
	f := payments.Filters{ClientName: strings.TrimSpace(clientName), PaymentID: strings.TrimSpace(paymentID)}
	if strings.TrimSpace(st) != "" {
		s, err := status.Parse(st)
		if err != nil {
			return f, err
		}
		f.Status = &s
	}
	var err error
	if f.StartDate, err = parseDate(start, false); err != nil {
		return f, apperr.ValidationErr("invalid startDate")
	}
	if f.EndDate, err = parseDate(end, true); err != nil {
		return f, apperr.ValidationErr("invalid endDate")
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, apperr.ValidationErr("endDate is before startDate")
	}
	return f, nil
}

// parseDate accepts a date or a timestamp. A bare end date covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		if endOfDay {
			d = d.Add(24*time.Hour - time.Nanosecond)
		}
		return &d, nil
	}
	t, err := cast.ToTimeE(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parsePage returns a 1-based page and a clamped limit.
func parsePage(rawPage, rawLimit string) (page, limit int, err error) {
	page, limit = 1, payments.DefaultPageLimit
	if rawPage != "" {
		if page, err = cast.ToIntE(rawPage); err != nil || page < 1 {
			return 0, 0, apperr.ValidationErr("page must be a positive integer")
		}
	}
	if rawLimit != "" {
		if limit, err = cast.ToIntE(rawLimit); err != nil || limit < 1 {
			return 0, 0, apperr.ValidationErr("limit must be a positive integer")
		}
	}
	if limit > payments.MaxPageLimit {
		limit = payments.MaxPageLimit
	}
	return page, limit, nil
}

func (h *PaymentHandler) log() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
