package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/multazero/backend/internal/auth"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubValidator struct {
	principal *auth.Principal
	err       error
	lastToken string
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (*auth.Principal, error) {
	s.lastToken = token
	return s.principal, s.err
}

// okHandler writes 200 and the principal role (for assertions).
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if p := PrincipalFromCtx(r.Context()); p != nil {
		w.Write([]byte(p.Role))
	}
})

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRequireAuth_ValidToken(t *testing.T) {
	v := &stubValidator{principal: &auth.Principal{Subject: uuid.New(), Role: auth.RoleAdmin}}
	h := RequireAuth(v)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer tok-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != auth.RoleAdmin {
		t.Errorf("expected role in body, got %q", rec.Body.String())
	}
	if v.lastToken != "tok-123" {
		t.Errorf("validator got token %q", v.lastToken)
	}
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	h := RequireAuth(&stubValidator{})(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	h := RequireAuth(&stubValidator{err: errors.New("expired")})(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name      string
		principal *auth.Principal
		want      int
	}{
		{"admin", &auth.Principal{Role: auth.RoleAdmin}, http.StatusOK},
		{"company", &auth.Principal{Role: auth.RoleCompany, CompanyID: uuid.New()}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			}
			rec := httptest.NewRecorder()
			RequireAdmin(okHandler).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
