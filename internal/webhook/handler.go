package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

const (
	tokenHeader  = "asaas-access-token"
	maxBodyBytes = 1 << 20
)

// EventHandler is what the HTTP handler dispatches to. *Processor implements it.
type EventHandler interface {
	Handle(ctx context.Context, raw []byte) (string, error)
}

// Handler receives gateway notifications. When token is set the request must
// carry it in the asaas-access-token header.
type Handler struct {
	proc  EventHandler
	token string
	log   *slog.Logger
}

func NewHandler(proc EventHandler, token string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{proc: proc, token: token, log: log}
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(tokenHeader)), []byte(h.token)) != 1 {
		h.log.Warn("webhook rejected, bad access token", "remote_addr", r.RemoteAddr)
		http.Error(w, `{"error":"invalid webhook token"}`, http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, `{"error":"could not read body"}`, http.StatusBadRequest)
		return
	}

	outcome, err := h.proc.Handle(r.Context(), body)
	if err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			http.Error(w, `{"error":"malformed webhook payload"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"error":"webhook processing failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"received": true, "outcome": outcome})
}
