package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multazero/backend/internal/apperr"
	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/payments/paymentstest"
	"github.com/multazero/backend/internal/status"
)

type fixture struct {
	credits *paymentstest.MemSource
	orders  *paymentstest.MemSource
	legacy  *paymentstest.MemSource
	agg     *Aggregator
}

func newFixture(live Source) *fixture {
	f := &fixture{
		credits: paymentstest.NewMemSource(models.SourceCredits),
		orders:  paymentstest.NewMemSource(models.SourceServiceCharge),
		legacy:  paymentstest.NewMemSource(models.SourceLegacyGateway),
	}
	f.agg = NewAggregator([]StoredSource{f.credits, f.orders, f.legacy}, live, time.Second, nil)
	return f
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(days int) time.Time { return base.AddDate(0, 0, days) }

func TestListPayments_DedupPriority(t *testing.T) {
	f := newFixture(nil)
	f.legacy.Add(models.PaymentView{ExternalID: "pay_1", ClientName: "legacy", CreatedAt: at(0)})
	f.orders.Add(models.PaymentView{ExternalID: "pay_1", ClientName: "order", CreatedAt: at(0)})
	f.credits.Add(models.PaymentView{ExternalID: "pay_1", ClientName: "credit", CreatedAt: at(0)})
	f.orders.Add(models.PaymentView{ExternalID: "pay_2", ClientName: "order2", CreatedAt: at(1)})
	f.legacy.Add(models.PaymentView{ExternalID: "pay_2", ClientName: "legacy2", CreatedAt: at(1)})

	res, err := f.agg.ListPayments(context.Background(), Scope{}, Filters{}, Page{}, false)
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)

	byExt := map[string]models.PaymentView{}
	for _, v := range res.Items {
		_, dup := byExt[v.ExternalID]
		assert.False(t, dup, "external id %s appears twice", v.ExternalID)
		byExt[v.ExternalID] = v
	}
	assert.Equal(t, models.SourceCredits, byExt["pay_1"].Source)
	assert.Equal(t, models.SourceServiceCharge, byExt["pay_2"].Source)
}

func TestListPayments_RowsWithoutExternalIDAreKept(t *testing.T) {
	f := newFixture(nil)
	f.credits.Add(models.PaymentView{CreatedAt: at(0)})
	f.orders.Add(models.PaymentView{CreatedAt: at(0)})

	res, err := f.agg.ListPayments(context.Background(), Scope{}, Filters{}, Page{}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestListPayments_FailingSourceIsSkipped(t *testing.T) {
	f := newFixture(nil)
	f.credits.Add(models.PaymentView{ExternalID: "pay_1", CreatedAt: at(0)})
	f.orders.Add(models.PaymentView{ExternalID: "pay_2", CreatedAt: at(1)})
	f.orders.Fail = true

	res, err := f.agg.ListPayments(context.Background(), Scope{}, Filters{}, Page{}, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "pay_1", res.Items[0].ExternalID)
}

func TestListPayments_FiltersSortAndPaginate(t *testing.T) {
	f := newFixture(nil)
	company := uuid.New()
	other := uuid.New()
	confirmed := status.Confirmed
	for i := 0; i < 5; i++ {
		f.orders.Add(models.PaymentView{
			ExternalID: "pay_c" + string(rune('0'+i)),
			CompanyID:  &company,
			ClientName: "João Silva",
			Status:     status.Confirmed,
			Amount:     decimal.NewFromInt(int64(i)),
			CreatedAt:  at(i),
		})
	}
	f.orders.Add(models.PaymentView{ExternalID: "pay_p", CompanyID: &company, ClientName: "João Silva", Status: status.Pending, CreatedAt: at(2)})
	f.orders.Add(models.PaymentView{ExternalID: "pay_o", CompanyID: &other, ClientName: "João Silva", Status: status.Confirmed, CreatedAt: at(2)})

	start, end := at(1), at(3)
	res, err := f.agg.ListPayments(context.Background(),
		Scope{CompanyID: company},
		Filters{Status: &confirmed, ClientName: "joão", StartDate: &start, EndDate: &end},
		Page{Limit: 2, Offset: 0}, false)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total, "total counts every filtered row before pagination")
	require.Len(t, res.Items, 2)
	assert.Equal(t, "pay_c3", res.Items[0].ExternalID)
	assert.Equal(t, "pay_c2", res.Items[1].ExternalID)

	res, err = f.agg.ListPayments(context.Background(),
		Scope{CompanyID: company},
		Filters{Status: &confirmed, ClientName: "joão", StartDate: &start, EndDate: &end},
		Page{Limit: 2, Offset: 2}, false)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "pay_c1", res.Items[0].ExternalID)

	res, err = f.agg.ListPayments(context.Background(), Scope{CompanyID: company}, Filters{}, Page{Offset: 50}, false)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
	assert.Empty(t, res.Items)
}

func TestListPayments_PaymentIDFilterMatchesInternalAndExternal(t *testing.T) {
	f := newFixture(nil)
	v := f.credits.Add(models.PaymentView{CreatedAt: at(0)})
	f.orders.Add(models.PaymentView{ExternalID: "pay_ABC123", CreatedAt: at(0)})

	res, err := f.agg.ListPayments(context.Background(), Scope{}, Filters{PaymentID: "abc123"}, Page{}, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "pay_ABC123", res.Items[0].ExternalID)

	res, err = f.agg.ListPayments(context.Background(), Scope{}, Filters{PaymentID: v.PaymentID[:8]}, Page{}, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, v.PaymentID, res.Items[0].PaymentID)
}

type stubLive struct {
	views  []models.PaymentView
	err    error
	called bool
}

func (s *stubLive) Name() models.Source { return models.SourceGateway }

func (s *stubLive) List(ctx context.Context, companyID uuid.UUID) ([]models.PaymentView, error) {
	s.called = true
	return s.views, s.err
}

func TestListPayments_LiveSourceIsLowestPriority(t *testing.T) {
	company := uuid.New()
	live := &stubLive{views: []models.PaymentView{
		{PaymentID: "pay_1", ExternalID: "pay_1", Source: models.SourceGateway, CreatedAt: at(0)},
		{PaymentID: "pay_new", ExternalID: "pay_new", Source: models.SourceGateway, CreatedAt: at(1)},
	}}
	f := newFixture(live)
	f.orders.Add(models.PaymentView{ExternalID: "pay_1", CompanyID: &company, CreatedAt: at(0)})

	res, err := f.agg.ListPayments(context.Background(), Scope{CompanyID: company}, Filters{}, Page{}, true)
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
	assert.Equal(t, models.SourceGateway, res.Items[0].Source)
	assert.Equal(t, models.SourceServiceCharge, res.Items[1].Source)
}

func TestListPayments_LiveSourceNeedsSingleCompany(t *testing.T) {
	live := &stubLive{}
	f := newFixture(live)
	_, err := f.agg.ListPayments(context.Background(), Scope{}, Filters{}, Page{}, true)
	require.NoError(t, err)
	assert.False(t, live.called)

	live.err = errors.New("gateway down")
	_, err = f.agg.ListPayments(context.Background(), Scope{CompanyID: uuid.New()}, Filters{}, Page{}, true)
	require.NoError(t, err)
	assert.True(t, live.called)
}

func TestGetPaymentDetail(t *testing.T) {
	f := newFixture(nil)
	f.legacy.Add(models.PaymentView{ExternalID: "pay_1", ClientName: "legacy"})
	f.orders.Add(models.PaymentView{ExternalID: "pay_1", ClientName: "order"})
	c := f.credits.Add(models.PaymentView{ClientName: "credit"})

	v, err := f.agg.GetPaymentDetail(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "order", v.ClientName)

	v, err = f.agg.GetPaymentDetail(context.Background(), c.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "credit", v.ClientName)

	_, err = f.agg.GetPaymentDetail(context.Background(), "pay_missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestFindAndExistsExternalID(t *testing.T) {
	f := newFixture(nil)
	f.legacy.Add(models.PaymentView{ExternalID: "pay_1"})
	f.credits.Add(models.PaymentView{ExternalID: "pay_1"})
	ctx := context.Background()

	rec, src, err := f.agg.FindByExternalID(ctx, "pay_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.SourceCredits, rec.Source)
	assert.Equal(t, models.SourceCredits, src.Name())

	rec, src, err = f.agg.FindByExternalID(ctx, "pay_2")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Nil(t, src)

	ok, err := f.agg.ExistsExternalID(ctx, "pay_1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.agg.ExistsExternalID(ctx, "pay_2")
	require.NoError(t, err)
	assert.False(t, ok)
}
