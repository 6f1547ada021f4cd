package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/multazero/backend/internal/apperr"
)

type stubProc struct {
	outcome string
	err     error
	calls   int
}

func (s *stubProc) Handle(ctx context.Context, raw []byte) (string, error) {
	s.calls++
	return s.outcome, s.err
}

func TestReceive_StatusCodes(t *testing.T) {
	tests := []struct {
		name string
		proc *stubProc
		want int
	}{
		{"processed", &stubProc{outcome: OutcomeUpdated}, http.StatusOK},
		{"ignored type", &stubProc{outcome: OutcomeIgnoredType}, http.StatusOK},
		{"malformed", &stubProc{err: ErrMalformedPayload}, http.StatusBadRequest},
		{"dispatch validation error", &stubProc{err: apperr.ValidationErr("unsupported status")}, http.StatusInternalServerError},
		{"internal", &stubProc{err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.proc, "", nil)
			req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			h.Receive(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestReceive_Token(t *testing.T) {
	proc := &stubProc{outcome: OutcomeNoop}
	h := NewHandler(proc, "s3cret", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", strings.NewReader(`{}`))
	req.Header.Set("asaas-access-token", "wrong")
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
	if proc.calls != 0 {
		t.Errorf("processor called %d times for rejected request", proc.calls)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/gateway", strings.NewReader(`{}`))
	req.Header.Set("asaas-access-token", "s3cret")
	rec = httptest.NewRecorder()
	h.Receive(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"outcome":"noop"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestReceive_DispatchFailureIsRetryable(t *testing.T) {
	e := newProcEnv()
	e.recharger.purchases["pay_1"] = false
	e.recharger.err = apperr.ValidationErr("purchase amount missing")
	h := NewHandler(e.proc, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway",
		strings.NewReader(string(event("evt_1", EventPaymentReceived, "pay_1", "RECEIVED"))))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 so the gateway retries", rec.Code)
	}

	e.recharger.err = nil
	req = httptest.NewRequest(http.MethodPost, "/webhooks/gateway", strings.NewReader(`{"event":`))
	rec = httptest.NewRecorder()
	h.Receive(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec.Code)
	}
	if len(e.log.entries) != 2 || e.log.entries[1].DispatchOutcome != OutcomeMalformed {
		t.Errorf("log entries = %+v", e.log.entries)
	}
}
