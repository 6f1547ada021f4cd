package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/multazero/backend/internal/apperr"
	"github.com/multazero/backend/internal/auth"
	"github.com/multazero/backend/internal/ledger"
	"github.com/multazero/backend/internal/middleware"
	"github.com/multazero/backend/internal/models"
)

// CreditLedger is the subset of ledger.Service used over HTTP.
type CreditLedger interface {
	GetBalance(ctx context.Context, ownerType string, ownerID uuid.UUID) (decimal.Decimal, error)
	AddCredits(ctx context.Context, in ledger.AddCreditsInput) (*models.CreditLedgerEntry, error)
	Adjust(ctx context.Context, in ledger.AddCreditsInput) (*models.CreditLedgerEntry, error)
	GetTransactionHistory(ctx context.Context, ownerType string, ownerID uuid.UUID, limit, offset int) ([]*models.CreditLedgerEntry, error)
}

// CreditHandler serves /credits endpoints.
type CreditHandler struct {
	Ledger CreditLedger
	Logger *slog.Logger
}

type balanceResponse struct {
	OwnerType string          `json:"owner_type"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// GetBalance handles GET /credits/balance?ownerType=&ownerId=.
func (h *CreditHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ownerType, ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	bal, err := h.Ledger.GetBalance(r.Context(), ownerType, ownerID)
	if err != nil {
		writeError(w, h.log(), err, "get balance")
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{OwnerType: ownerType, OwnerID: ownerID, Balance: bal})
}

// GetHistory handles GET /credits/history?ownerType=&ownerId=&limit=&offset=.
func (h *CreditHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ownerType, ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, err := cast.ToIntE(defaultString(q.Get("limit"), "0"))
	if err != nil || limit < 0 {
		http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
		return
	}
	offset, err := cast.ToIntE(defaultString(q.Get("offset"), "0"))
	if err != nil || offset < 0 {
		http.Error(w, `{"error":"invalid offset"}`, http.StatusBadRequest)
		return
	}
	entries, err := h.Ledger.GetTransactionHistory(r.Context(), ownerType, ownerID, limit, offset)
	if err != nil {
		writeError(w, h.log(), err, "credit history")
		return
	}
	if entries == nil {
		entries = []*models.CreditLedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": entries})
}

type addCreditsRequest struct {
	OwnerType   string          `json:"ownerType" validate:"required,oneof=client company"`
	OwnerID     string          `json:"ownerId" validate:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=500"`
	PaymentID   string          `json:"paymentId" validate:"omitempty,uuid"`
}

type addCreditsResponse struct {
	Entry   *models.CreditLedgerEntry `json:"entry"`
	Balance decimal.Decimal           `json:"balance"`
}

// AddCredits handles POST /credits/add (admin). A negative amount is written
// as an adjustment and needs a description.
func (h *CreditHandler) AddCredits(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req addCreditsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log(), err, "add credits")
		return
	}
	actor := p.Subject
	in := ledger.AddCreditsInput{
		OwnerType:   req.OwnerType,
		OwnerID:     uuid.MustParse(req.OwnerID),
		Amount:      req.Amount,
		ActorID:     &actor,
		Description: req.Description,
	}
	if req.PaymentID != "" {
		id := uuid.MustParse(req.PaymentID)
		in.PaymentID = &id
	}

	var (
		entry *models.CreditLedgerEntry
		err   error
	)
	if req.Amount.IsNegative() {
		entry, err = h.Ledger.Adjust(r.Context(), in)
	} else {
		entry, err = h.Ledger.AddCredits(r.Context(), in)
	}
	if err != nil {
		writeError(w, h.log(), err, "add credits")
		return
	}
	bal, err := h.Ledger.GetBalance(r.Context(), in.OwnerType, in.OwnerID)
	if err != nil {
		writeError(w, h.log(), err, "add credits")
		return
	}
	h.log().Info("credits added", "owner_type", in.OwnerType, "owner_id", in.OwnerID,
		"amount", in.Amount.String(), "entry_type", entry.EntryType, "actor_id", actor)
	writeJSON(w, http.StatusCreated, addCreditsResponse{Entry: entry, Balance: bal})
}

// owner parses the owner query parameters and enforces that company callers
// only read their own company's balance.
func (h *CreditHandler) owner(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return "", uuid.Nil, false
	}
	q := r.URL.Query()
	ownerType := strings.ToLower(strings.TrimSpace(q.Get("ownerType")))
	if !models.ValidOwnerType(ownerType) {
		http.Error(w, `{"error":"ownerType must be client or company"}`, http.StatusBadRequest)
		return "", uuid.Nil, false
	}
	ownerID, err := uuid.Parse(strings.TrimSpace(q.Get("ownerId")))
	if err != nil {
		http.Error(w, `{"error":"invalid ownerId"}`, http.StatusBadRequest)
		return "", uuid.Nil, false
	}
	if !canReadOwner(p, ownerType, ownerID) {
		writeError(w, h.log(), apperr.ForbiddenErr("cannot read credits of another owner"), "credit owner")
		return "", uuid.Nil, false
	}
	return ownerType, ownerID, true
}

func canReadOwner(p *auth.Principal, ownerType string, ownerID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return ownerType == models.OwnerCompany && ownerID == p.CompanyID
}

func (h *CreditHandler) log() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
