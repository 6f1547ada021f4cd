// Package paymentstest provides in-memory payment sources for tests.
package paymentstest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/status"
)

// ErrSourceDown is what a MemSource returns from List when Fail is set.
var ErrSourceDown = errors.New("source unavailable")

// MemSource is a StoredSource backed by a slice. Status writes keep the
// stored view and record in step.
type MemSource struct {
	mu      sync.Mutex
	name    models.Source
	rows    []*row
	Fail    bool
	Updates int
}

type row struct {
	view models.PaymentView
	raw  string
}

func NewMemSource(name models.Source) *MemSource {
	return &MemSource{name: name}
}

// Add stores a view. PaymentID is filled with a new uuid when empty and
// Source is forced to the MemSource's name.
func (m *MemSource) Add(v models.PaymentView) models.PaymentView {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.PaymentID == "" {
		v.PaymentID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = status.Pending
	}
	v.Source = m.name
	m.rows = append(m.rows, &row{view: v, raw: string(v.Status)})
	return v
}

// View returns the stored view for a payment id or external id.
func (m *MemSource) View(ref string) (models.PaymentView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.find(ref); r != nil {
		return r.view, true
	}
	return models.PaymentView{}, false
}

func (m *MemSource) Name() models.Source { return m.name }

func (m *MemSource) List(ctx context.Context, companyID uuid.UUID) ([]models.PaymentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, ErrSourceDown
	}
	var out []models.PaymentView
	for _, r := range m.rows {
		if companyID != uuid.Nil && (r.view.CompanyID == nil || *r.view.CompanyID != companyID) {
			continue
		}
		out = append(out, r.view)
	}
	return out, nil
}

func (m *MemSource) Get(ctx context.Context, ref string) (*models.PaymentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.find(ref); r != nil {
		v := r.view
		return &v, nil
	}
	return nil, nil
}

func (m *MemSource) FindByExternalID(ctx context.Context, externalID string) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if externalID != "" && r.view.ExternalID == externalID {
			return m.record(r), nil
		}
	}
	return nil, nil
}

func (m *MemSource) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.view.PaymentID == id.String() {
			return m.record(r), nil
		}
	}
	return nil, nil
}

func (m *MemSource) ExistsExternalID(ctx context.Context, externalID string) (bool, error) {
	rec, _ := m.FindByExternalID(ctx, externalID)
	return rec != nil, nil
}

func (m *MemSource) UpdateStatus(ctx context.Context, rec *models.PaymentRecord, next status.Status, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.byID(rec.ID)
	if r == nil || r.raw != rec.RawStatus {
		return false, nil
	}
	m.apply(r, next, paidAt)
	return true, nil
}

func (m *MemSource) SetStatus(ctx context.Context, rec *models.PaymentRecord, next status.Status, paidAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.byID(rec.ID); r != nil {
		m.apply(r, next, paidAt)
	}
	return nil
}

func (m *MemSource) apply(r *row, next status.Status, paidAt *time.Time) {
	r.view.Status = next
	r.raw = string(next)
	if paidAt != nil {
		r.view.PaidAt = paidAt
	}
	m.Updates++
}

func (m *MemSource) find(ref string) *row {
	for _, r := range m.rows {
		if r.view.PaymentID == ref || (ref != "" && r.view.ExternalID == ref) {
			return r
		}
	}
	return nil
}

func (m *MemSource) byID(id uuid.UUID) *row {
	for _, r := range m.rows {
		if r.view.PaymentID == id.String() {
			return r
		}
	}
	return nil
}

func (m *MemSource) record(r *row) *models.PaymentRecord {
	id, _ := uuid.Parse(r.view.PaymentID)
	return &models.PaymentRecord{
		ID:         id,
		Source:     m.name,
		ExternalID: r.view.ExternalID,
		CompanyID:  r.view.CompanyID,
		Status:     status.FromStored(r.raw),
		RawStatus:  r.raw,
		PaidAt:     r.view.PaidAt,
	}
}
