package payments

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/multazero/backend/internal/apperr"
	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/status"
)

const (
	DefaultPageLimit   = 20
	MaxPageLimit       = 200
	defaultLiveTimeout = 5 * time.Second
)

// Scope selects the payments of one company. uuid.Nil means all companies.
type Scope struct {
	CompanyID uuid.UUID
}

func (s Scope) AllCompanies() bool { return s.CompanyID == uuid.Nil }

type Filters struct {
	Status     *status.Status
	ClientName string
	PaymentID  string
	StartDate  *time.Time
	EndDate    *time.Time
}

type Page struct {
	Limit  int
	Offset int
}

type PagedResult struct {
	Items  []models.PaymentView `json:"items"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// Aggregator merges the stored sources, and optionally the live gateway, into one view.
type Aggregator struct {
	stored      []StoredSource
	live        Source
	liveTimeout time.Duration
	logger      *slog.Logger
}

// NewAggregator takes the stored sources in dedup priority order. live may be nil.
func NewAggregator(stored []StoredSource, live Source, liveTimeout time.Duration, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if liveTimeout <= 0 {
		liveTimeout = defaultLiveTimeout
	}
	return &Aggregator{stored: stored, live: live, liveTimeout: liveTimeout, logger: logger}
}

// ListPayments fetches every source concurrently. A failing source contributes
// nothing and is logged; the call itself only fails when ctx is done.
func (a *Aggregator) ListPayments(ctx context.Context, scope Scope, f Filters, p Page, includeGateway bool) (*PagedResult, error) {
	sources := make([]Source, 0, len(a.stored)+1)
	for _, s := range a.stored {
		sources = append(sources, s)
	}
	if includeGateway && a.live != nil && !scope.AllCompanies() {
		sources = append(sources, a.live)
	}

	results := make([][]models.PaymentView, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			fetchCtx := gctx
			if src.Name() == models.SourceGateway {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(gctx, a.liveTimeout)
				defer cancel()
			}
			views, err := src.List(fetchCtx, scope.CompanyID)
			if err != nil {
				a.logger.Warn("payment source failed, continuing without it",
					"source", src.Name(), "company_id", scope.CompanyID, "error", err)
				return nil
			}
			results[i] = views
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := dedupe(results)
	filtered := merged[:0]
	for _, v := range merged {
		if f.match(v) {
			filtered = append(filtered, v)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	limit, offset := normalizePage(p)
	out := &PagedResult{Items: []models.PaymentView{}, Total: len(filtered), Limit: limit, Offset: offset}
	if offset < len(filtered) {
		end := min(offset+limit, len(filtered))
		out.Items = filtered[offset:end]
	}
	return out, nil
}

// dedupe concatenates the per-source results in priority order and keeps
// the first row seen for each key.
func dedupe(results [][]models.PaymentView) []models.PaymentView {
	seen := make(map[string]struct{})
	var out []models.PaymentView
	for _, views := range results {
		for _, v := range views {
			k := v.DedupKey()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func (f Filters) match(v models.PaymentView) bool {
	if f.Status != nil && v.Status != *f.Status {
		return false
	}
	if f.ClientName != "" && !containsFold(v.ClientName, f.ClientName) {
		return false
	}
	if f.PaymentID != "" && !containsFold(v.PaymentID, f.PaymentID) && !containsFold(v.ExternalID, f.PaymentID) {
		return false
	}
	if f.StartDate != nil && v.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && v.CreatedAt.After(*f.EndDate) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}

func normalizePage(p Page) (limit, offset int) {
	limit, offset = p.Limit, p.Offset
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// GetPaymentDetail returns the first stored row, in priority order, whose id
// or external id equals ref.
func (a *Aggregator) GetPaymentDetail(ctx context.Context, ref string) (*models.PaymentView, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.ValidationErr("payment id is required")
	}
	for _, s := range a.stored {
		v, err := s.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	return nil, apperr.NotFoundErr("payment %s not found", ref)
}

// ExistsExternalID reports whether any stored source holds externalID.
func (a *Aggregator) ExistsExternalID(ctx context.Context, externalID string) (bool, error) {
	for _, s := range a.stored {
		ok, err := s.ExistsExternalID(ctx, externalID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// FindByExternalID returns the highest-priority stored record for externalID,
// with the source that holds it. Both are nil when no source has it.
func (a *Aggregator) FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, StoredSource, error) {
	for _, s := range a.stored {
		rec, err := s.FindByExternalID(ctx, externalID)
		if err != nil {
			return nil, nil, err
		}
		if rec != nil {
			return rec, s, nil
		}
	}
	return nil, nil, nil
}

// SourceFor returns the stored source with the given name.
func (a *Aggregator) SourceFor(name models.Source) StoredSource {
	for _, s := range a.stored {
		if s.Name() == name {
			return s
		}
	}
	return nil
}
