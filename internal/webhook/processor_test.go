package webhook

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/payments"
	"github.com/multazero/backend/internal/payments/paymentstest"
	"github.com/multazero/backend/internal/recharge"
	"github.com/multazero/backend/internal/status"
)

// mockRecharger treats ids in purchases as credit purchases and credits each once.
type mockRecharger struct {
	mu        sync.Mutex
	purchases map[string]bool // external id -> confirmed
	credits   int
	err       error
}

func (m *mockRecharger) ConfirmByExternalID(ctx context.Context, externalID string, paidAt time.Time) (*recharge.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	confirmed, ok := m.purchases[externalID]
	if !ok {
		return &recharge.Outcome{}, nil
	}
	if confirmed {
		return &recharge.Outcome{Handled: true}, nil
	}
	m.purchases[externalID] = true
	m.credits++
	return &recharge.Outcome{Handled: true, Credited: true}, nil
}

type mockEventLog struct {
	mu      sync.Mutex
	entries []*models.WebhookEventLogEntry
	err     error
}

func (m *mockEventLog) Insert(ctx context.Context, e *models.WebhookEventLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

type procEnv struct {
	recharger *mockRecharger
	orders    *paymentstest.MemSource
	legacy    *paymentstest.MemSource
	log       *mockEventLog
	proc      *Processor
}

func newProcEnv() *procEnv {
	e := &procEnv{
		recharger: &mockRecharger{purchases: map[string]bool{}},
		orders:    paymentstest.NewMemSource(models.SourceServiceCharge),
		legacy:    paymentstest.NewMemSource(models.SourceLegacyGateway),
		log:       &mockEventLog{},
	}
	credits := paymentstest.NewMemSource(models.SourceCredits)
	agg := payments.NewAggregator([]payments.StoredSource{credits, e.orders, e.legacy}, nil, time.Second, nil)
	e.proc = NewProcessor(e.recharger, agg, e.log, nil)
	return e
}

func event(id, typ, ext, gwStatus string) []byte {
	return []byte(`{"id":"` + id + `","event":"` + typ + `","payment":{"id":"` + ext + `","status":"` + gwStatus + `","value":50.0,"paymentDate":"2024-03-02"}}`)
}

func TestHandle_CreditPurchaseConfirmedTwiceCreditsOnce(t *testing.T) {
	e := newProcEnv()
	e.recharger.purchases["pay_1"] = false
	ctx := context.Background()

	out, err := e.proc.Handle(ctx, event("evt_1", EventPaymentConfirmed, "pay_1", "CONFIRMED"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCredited, out)

	out, err = e.proc.Handle(ctx, event("evt_2", EventPaymentReceived, "pay_1", "RECEIVED"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyConfirmed, out)

	assert.Equal(t, 1, e.recharger.credits)
	require.Len(t, e.log.entries, 2)
	assert.Equal(t, "evt_1", e.log.entries[0].EventID)
	assert.Equal(t, OutcomeCredited, e.log.entries[0].DispatchOutcome)
}

func TestHandle_GenericConfirmIsIdempotent(t *testing.T) {
	e := newProcEnv()
	e.orders.Add(models.PaymentView{ExternalID: "pay_1", Status: status.Pending})
	ctx := context.Background()

	out, err := e.proc.Handle(ctx, event("evt_1", EventPaymentConfirmed, "pay_1", "CONFIRMED"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)

	out, err = e.proc.Handle(ctx, event("evt_1", EventPaymentConfirmed, "pay_1", "CONFIRMED"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out)

	v, _ := e.orders.View("pay_1")
	assert.Equal(t, status.Confirmed, v.Status)
	require.NotNil(t, v.PaidAt)
	assert.Equal(t, 2, v.PaidAt.Day())
	assert.Equal(t, 1, e.orders.Updates)
}

func TestHandle_OutOfOrderDeliveriesConverge(t *testing.T) {
	orders := [][]string{
		{EventPaymentUpdated, EventPaymentConfirmed},
		{EventPaymentConfirmed, EventPaymentUpdated},
	}
	for _, seq := range orders {
		t.Run(strings.Join(seq, "_then_"), func(t *testing.T) {
			e := newProcEnv()
			e.orders.Add(models.PaymentView{ExternalID: "pay_1", Status: status.Pending})
			for i, typ := range seq {
				_, err := e.proc.Handle(context.Background(), event("evt_"+string(rune('a'+i)), typ, "pay_1", "RECEIVED"))
				require.NoError(t, err)
			}
			v, _ := e.orders.View("pay_1")
			assert.Equal(t, status.Confirmed, v.Status)
			assert.Equal(t, 1, e.orders.Updates)
		})
	}
}

func TestHandle_LateOverdueDoesNotRegress(t *testing.T) {
	e := newProcEnv()
	e.legacy.Add(models.PaymentView{ExternalID: "pay_1", Status: status.Pending})
	ctx := context.Background()

	_, err := e.proc.Handle(ctx, event("evt_1", EventPaymentConfirmed, "pay_1", "RECEIVED"))
	require.NoError(t, err)
	out, err := e.proc.Handle(ctx, event("evt_2", EventPaymentOverdue, "pay_1", "OVERDUE"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, out)

	v, _ := e.legacy.View("pay_1")
	assert.Equal(t, status.Confirmed, v.Status)
}

func TestHandle_ExpiredThenConfirmedIsHonored(t *testing.T) {
	e := newProcEnv()
	e.orders.Add(models.PaymentView{ExternalID: "pay_1", Status: status.Pending})
	ctx := context.Background()

	_, err := e.proc.Handle(ctx, event("evt_1", EventPaymentOverdue, "pay_1", "OVERDUE"))
	require.NoError(t, err)
	_, err = e.proc.Handle(ctx, event("evt_2", EventPaymentReceived, "pay_1", "RECEIVED"))
	require.NoError(t, err)

	v, _ := e.orders.View("pay_1")
	assert.Equal(t, status.Confirmed, v.Status)
}

func TestHandle_StatusEvents(t *testing.T) {
	tests := []struct {
		event string
		from  status.Status
		want  status.Status
	}{
		{EventPaymentDeleted, status.Pending, status.Cancelled},
		{EventPaymentOverdue, status.Pending, status.Expired},
		{EventPaymentRefunded, status.Confirmed, status.Refunded},
		{EventPaymentRefundInProgress, status.Confirmed, status.Refunded},
		{EventChargebackRequested, status.Confirmed, status.Refunded},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			e := newProcEnv()
			e.orders.Add(models.PaymentView{ExternalID: "pay_1", Status: tt.from})
			out, err := e.proc.Handle(context.Background(), event("evt", tt.event, "pay_1", ""))
			require.NoError(t, err)
			assert.Equal(t, OutcomeUpdated, out)
			v, _ := e.orders.View("pay_1")
			assert.Equal(t, tt.want, v.Status)
		})
	}
}

func TestHandle_UpdatedWithoutConfirmedStatusIsIgnored(t *testing.T) {
	e := newProcEnv()
	e.orders.Add(models.PaymentView{ExternalID: "pay_1", Status: status.Pending})
	out, err := e.proc.Handle(context.Background(), event("evt", EventPaymentUpdated, "pay_1", "PENDING"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnoredStatus, out)
	assert.Zero(t, e.orders.Updates)
}

func TestHandle_UnknownTypeAndPayment(t *testing.T) {
	e := newProcEnv()
	ctx := context.Background()

	out, err := e.proc.Handle(ctx, event("evt_1", "PAYMENT_CREATED", "pay_1", "PENDING"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnoredType, out)

	out, err = e.proc.Handle(ctx, event("evt_2", EventPaymentDeleted, "pay_nobody", "DELETED"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknownPayment, out)

	require.Len(t, e.log.entries, 2)
	assert.Equal(t, "PAYMENT_CREATED", e.log.entries[0].EventType)
	assert.Equal(t, "pay_nobody", e.log.entries[1].ExternalID)
}

func TestHandle_MalformedPayload(t *testing.T) {
	e := newProcEnv()
	_, err := e.proc.Handle(context.Background(), []byte(`{"event":`))
	assert.True(t, errors.Is(err, ErrMalformedPayload))
	require.Len(t, e.log.entries, 1)
	assert.True(t, strings.HasPrefix(e.log.entries[0].EventID, "hash:"))
	assert.Equal(t, OutcomeMalformed, e.log.entries[0].DispatchOutcome)
	assert.Nil(t, e.log.entries[0].RawPayload)
}

func TestHandle_SchemaViolations(t *testing.T) {
	for name, raw := range map[string]string{
		"no event":           `{"payment":{"id":"pay_1"}}`,
		"payment id number":  `{"event":"PAYMENT_RECEIVED","payment":{"id":42}}`,
		"payment without id": `{"event":"PAYMENT_RECEIVED","payment":{"status":"RECEIVED"}}`,
		"not an object":      `["PAYMENT_RECEIVED"]`,
	} {
		t.Run(name, func(t *testing.T) {
			e := newProcEnv()
			out, err := e.proc.Handle(context.Background(), []byte(raw))
			assert.True(t, errors.Is(err, ErrMalformedPayload))
			assert.Equal(t, OutcomeMalformed, out)
			assert.Zero(t, e.recharger.credits)
		})
	}
}

func TestHandle_SyntheticEventIDIsStable(t *testing.T) {
	e := newProcEnv()
	raw := []byte(`{"event":"PAYMENT_CREATED","payment":{"id":"pay_1"}}`)
	_, _ = e.proc.Handle(context.Background(), raw)
	_, _ = e.proc.Handle(context.Background(), raw)
	require.Len(t, e.log.entries, 2)
	assert.Equal(t, e.log.entries[0].EventID, e.log.entries[1].EventID)
}

func TestHandle_InternalErrorIsReturnedAndLogged(t *testing.T) {
	e := newProcEnv()
	e.recharger.err = errors.New("db down")
	_, err := e.proc.Handle(context.Background(), event("evt_1", EventPaymentConfirmed, "pay_1", "CONFIRMED"))
	require.Error(t, err)
	require.Len(t, e.log.entries, 1)
	assert.True(t, strings.HasPrefix(e.log.entries[0].DispatchOutcome, OutcomeError))
}

func TestHandle_LogFailureDoesNotFailEvent(t *testing.T) {
	e := newProcEnv()
	e.log.err = errors.New("log table locked")
	e.orders.Add(models.PaymentView{ExternalID: "pay_1", Status: status.Pending})
	out, err := e.proc.Handle(context.Background(), event("evt_1", EventPaymentDeleted, "pay_1", "DELETED"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)
}
