package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multazero/backend/internal/models"
)

type recordedCall struct {
	method string
	path   string
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *[]recordedCall) {
	t.Helper()
	var mu sync.Mutex
	calls := []recordedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, recordedCall{method: r.Method, path: r.URL.Path})
		mu.Unlock()
		if r.Header.Get("access_token") != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "key-1", 2*time.Second), &calls
}

func TestListPayments_DecodesPage(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("offset"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"object":"list","hasMore":true,"totalCount":151,"limit":50,"offset":100,
			"data":[{"id":"pay_1","status":"RECEIVED","value":50.00,"dateCreated":"2024-03-01","paymentDate":"2024-03-02","description":"Multa Grave - João"}]}`))
	})

	page, err := c.ListPayments(context.Background(), 100, 50)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Data, 1)

	p := page.Data[0]
	assert.Equal(t, "pay_1", p.ID)
	assert.True(t, p.Value.Equal(decimal.RequireFromString("50")))
	assert.Equal(t, 2024, p.CreatedAt().Year())
	require.NotNil(t, p.PaidAt())
	assert.Equal(t, 2, p.PaidAt().Day())
	assert.Nil(t, p.Due())
}

func TestGetPayment_NotFound(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.GetPayment(context.Background(), "pay_x")
	assert.True(t, errors.Is(err, ErrPaymentNotFound))
}

func TestGetPayment_ServerErrorIncludesStatus(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	_, err := c.GetPayment(context.Background(), "pay_x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestGetPixQRCode(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_1/pixQrCode", r.URL.Path)
		_, _ = w.Write([]byte(`{"encodedImage":"aW1n","payload":"000201...","expirationDate":"2024-03-10 23:59:59"}`))
	})
	qr, err := c.GetPixQRCode(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "000201...", qr.Payload)
	assert.Equal(t, "aW1n", qr.EncodedImage)
}

func TestApplyStatus_Operations(t *testing.T) {
	tests := []struct {
		status string
		want   *recordedCall
	}{
		{"RECEIVED", &recordedCall{http.MethodPost, "/payments/pay_1/receiveInCash"}},
		{"PENDING", &recordedCall{http.MethodPost, "/payments/pay_1/undoReceivedInCash"}},
		{"DELETED", &recordedCall{http.MethodDelete, "/payments/pay_1"}},
		{"REFUNDED", &recordedCall{http.MethodPost, "/payments/pay_1/refund"}},
		{"OVERDUE", nil},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			})
			require.NoError(t, c.ApplyStatus(context.Background(), "pay_1", tt.status))
			if tt.want == nil {
				assert.Empty(t, *calls)
				return
			}
			require.Len(t, *calls, 1)
			assert.Equal(t, *tt.want, (*calls)[0])
		})
	}
}

func TestApplyStatus_Unknown(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.Error(t, c.ApplyStatus(context.Background(), "pay_1", "AWAITING_RISK_ANALYSIS"))
	assert.Empty(t, *calls)
}

func TestMissingAPIKey(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second)
	_, err := c.GetPayment(context.Background(), "pay_1")
	assert.Error(t, err)
}

func TestFactory_PrefersCompanyBaseURL(t *testing.T) {
	f := NewFactory("https://default.example", time.Second)
	c := f(&models.GatewayCredentials{APIKey: "k", BaseURL: "https://sandbox.example/"}).(*Client)
	assert.Equal(t, "https://sandbox.example", c.BaseURL)

	c = f(&models.GatewayCredentials{APIKey: "k"}).(*Client)
	assert.Equal(t, "https://default.example", c.BaseURL)
	assert.Equal(t, time.Second, c.HTTPClient.Timeout)
}
