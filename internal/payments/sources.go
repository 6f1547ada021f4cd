package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/multazero/backend/internal/gateway"
	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/status"
)

// Source is anything payments can be listed from.
type Source interface {
	Name() models.Source
	List(ctx context.Context, companyID uuid.UUID) ([]models.PaymentView, error)
}

// StoredSource is a source backed by one of our tables.
type StoredSource interface {
	Source
	Get(ctx context.Context, ref string) (*models.PaymentView, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error)
	ExistsExternalID(ctx context.Context, externalID string) (bool, error)
	// UpdateStatus is a compare-and-set on rec.RawStatus.
	UpdateStatus(ctx context.Context, rec *models.PaymentRecord, next status.Status, paidAt *time.Time) (bool, error)
	SetStatus(ctx context.Context, rec *models.PaymentRecord, next status.Status, paidAt *time.Time) error
}

// RowStore is the repository shape shared by the three payment tables.
type RowStore[R any] interface {
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*R, error)
	GetByRef(ctx context.Context, ref string) (*R, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error)
	ExistsExternalID(ctx context.Context, externalID string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedRaw, newRaw string, paidAt *time.Time) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, newRaw string, paidAt *time.Time) error
}

type storedSource[R any] struct {
	name   models.Source
	store  RowStore[R]
	mapRow func(*R) models.PaymentView
	encode func(status.Status) (string, error)
}

var _ StoredSource = (*storedSource[models.CreditPurchaseRow])(nil)

func NewCreditSource(store RowStore[models.CreditPurchaseRow]) StoredSource {
	return &storedSource[models.CreditPurchaseRow]{name: models.SourceCredits, store: store, mapRow: MapCreditPurchase, encode: internalName}
}

func NewServiceOrderSource(store RowStore[models.ServiceOrderRow]) StoredSource {
	return &storedSource[models.ServiceOrderRow]{name: models.SourceServiceCharge, store: store, mapRow: MapServiceOrder, encode: internalName}
}

// NewLegacyGatewaySource writes statuses back as gateway codes.
func NewLegacyGatewaySource(store RowStore[models.LegacyGatewayRow]) StoredSource {
	return &storedSource[models.LegacyGatewayRow]{name: models.SourceLegacyGateway, store: store, mapRow: MapLegacyGateway, encode: status.ToGateway}
}

func internalName(s status.Status) (string, error) {
	if !s.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return string(s), nil
}

func (s *storedSource[R]) Name() models.Source { return s.name }

func (s *storedSource[R]) List(ctx context.Context, companyID uuid.UUID) ([]models.PaymentView, error) {
	rows, err := s.store.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]models.PaymentView, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.mapRow(r))
	}
	return out, nil
}

func (s *storedSource[R]) Get(ctx context.Context, ref string) (*models.PaymentView, error) {
	r, err := s.store.GetByRef(ctx, ref)
	if err != nil || r == nil {
		return nil, err
	}
	v := s.mapRow(r)
	return &v, nil
}

func (s *storedSource[R]) FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, error) {
	return s.store.FindByExternalID(ctx, externalID)
}

func (s *storedSource[R]) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	return s.store.FindByID(ctx, id)
}

func (s *storedSource[R]) ExistsExternalID(ctx context.Context, externalID string) (bool, error) {
	return s.store.ExistsExternalID(ctx, externalID)
}

func (s *storedSource[R]) UpdateStatus(ctx context.Context, rec *models.PaymentRecord, next status.Status, paidAt *time.Time) (bool, error) {
	raw, err := s.encode(next)
	if err != nil {
		return false, err
	}
	return s.store.UpdateStatus(ctx, rec.ID, rec.RawStatus, raw, paidAt)
}

func (s *storedSource[R]) SetStatus(ctx context.Context, rec *models.PaymentRecord, next status.Status, paidAt *time.Time) error {
	raw, err := s.encode(next)
	if err != nil {
		return err
	}
	return s.store.SetStatus(ctx, rec.ID, raw, paidAt)
}

// CredentialStore looks up a company's gateway credentials; (nil, nil) means none.
type CredentialStore interface {
	Get(ctx context.Context, companyID uuid.UUID) (*models.GatewayCredentials, error)
}

// GatewaySource lists payments live from the gateway for one company.
type GatewaySource struct {
	creds    CredentialStore
	factory  gateway.Factory
	pageSize int
}

func NewGatewaySource(creds CredentialStore, factory gateway.Factory, pageSize int) *GatewaySource {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &GatewaySource{creds: creds, factory: factory, pageSize: pageSize}
}

func (g *GatewaySource) Name() models.Source { return models.SourceGateway }

// List returns the first page of the company's gateway payments. A company
// without credentials has no live payments.
func (g *GatewaySource) List(ctx context.Context, companyID uuid.UUID) ([]models.PaymentView, error) {
	if companyID == uuid.Nil {
		return nil, nil
	}
	creds, err := g.creds.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, nil
	}
	page, err := g.factory(creds).ListPayments(ctx, 0, g.pageSize)
	if err != nil {
		return nil, err
	}
	out := make([]models.PaymentView, 0, len(page.Data))
	for i := range page.Data {
		if page.Data[i].Deleted {
			continue
		}
		out = append(out, MapGatewayPayment(&page.Data[i], companyID))
	}
	return out, nil
}
