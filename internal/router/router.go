// Package router wires the HTTP handlers onto a ServeMux.
package router

import (
	"net/http"

	"github.com/multazero/backend/internal/handlers"
	"github.com/multazero/backend/internal/middleware"
	"github.com/multazero/backend/internal/webhook"
)

// Handlers groups everything New mounts.
type Handlers struct {
	Payments *handlers.PaymentHandler
	Credits  *handlers.CreditHandler
	Webhook  *webhook.Handler
	Tokens   middleware.TokenValidator
}

// New returns the service mux. The gateway webhook and /healthz are the only
// unauthenticated routes.
func New(h Handlers) http.Handler {
	mux := http.NewServeMux()
	authed := middleware.RequireAuth(h.Tokens)
	admin := func(fn http.HandlerFunc) http.Handler {
		return authed(middleware.RequireAdmin(fn))
	}

	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("POST /webhooks/gateway", h.Webhook.Receive)

	mux.Handle("GET /payments", authed(http.HandlerFunc(h.Payments.ListPayments)))
	mux.Handle("GET /payments/{id}", authed(http.HandlerFunc(h.Payments.GetPayment)))
	mux.Handle("PUT /payments/{id}/status", admin(h.Payments.UpdateStatus))
	mux.Handle("POST /payments/sync/{companyId}", admin(h.Payments.SyncCompany))
	mux.Handle("POST /force-sync/{paymentId}", admin(h.Payments.ForceSync))

	mux.Handle("GET /credits/balance", authed(http.HandlerFunc(h.Credits.GetBalance)))
	mux.Handle("GET /credits/history", authed(http.HandlerFunc(h.Credits.GetHistory)))
	mux.Handle("POST /credits/add", admin(h.Credits.AddCredits))

	return mux
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
