// Package status is the single place where raw payment status strings are
// turned into the internal Status type and back into gateway codes.
package status

import (
	"strings"

	"github.com/multazero/backend/internal/apperr"
)

// Status is the internal payment status.
type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Cancelled Status = "cancelled"
	Expired   Status = "expired"
	Refunded  Status = "refunded"
)

// All lists every internal status.
var All = []Status{Pending, Confirmed, Cancelled, Expired, Refunded}

func (s Status) String() string { return string(s) }

// Valid reports whether s is one of the five internal statuses.
func (s Status) Valid() bool {
	switch s {
	case Pending, Confirmed, Cancelled, Expired, Refunded:
		return true
	}
	return false
}

// Terminal reports whether no further transition except refund is possible.
func (s Status) Terminal() bool {
	return s == Confirmed || s == Cancelled || s == Refunded
}

var inbound = map[string]Status{
	"PENDING":                      Pending,
	"AWAITING_RISK_ANALYSIS":       Pending,
	"RECEIVED":                     Confirmed,
	"CONFIRMED":                    Confirmed,
	"RECEIVED_IN_CASH":             Confirmed,
	"OVERDUE":                      Expired,
	"DELETED":                      Cancelled,
	"CANCELLED":                    Cancelled,
	"REFUNDED":                     Refunded,
	"REFUND_REQUESTED":             Refunded,
	"REFUND_IN_PROGRESS":           Refunded,
	"CHARGEBACK_REQUESTED":         Refunded,
	"CHARGEBACK_DISPUTE":           Refunded,
	"AWAITING_CHARGEBACK_REVERSAL": Refunded,
}

var outbound = map[Status]string{
	Pending:   "PENDING",
	Confirmed: "RECEIVED",
	Cancelled: "DELETED",
	Expired:   "OVERDUE",
	Refunded:  "REFUNDED",
}

// FromGateway maps a gateway status code to an internal status. It is total:
// unknown codes map to Pending.
func FromGateway(code string) Status {
	if s, ok := inbound[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return s
	}
	return Pending
}

// ToGateway maps an internal status to the gateway code used for manual
// status edits. Anything outside the five internal values is rejected.
func ToGateway(s Status) (string, error) {
	code, ok := outbound[s]
	if !ok {
		return "", apperr.UnsupportedStatusErr(string(s))
	}
	return code, nil
}

// Parse accepts an internal status name (case-insensitive) from a caller.
func Parse(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", apperr.UnsupportedStatusErr(raw)
	}
	return s, nil
}

// legacyNames covers values older rows were written with before the
// internal vocabulary was fixed.
var legacyNames = map[string]Status{
	"paid":      Confirmed,
	"pago":      Confirmed,
	"approved":  Confirmed,
	"canceled":  Cancelled,
	"cancelado": Cancelled,
	"pendente":  Pending,
	"overdue":   Expired,
	"vencido":   Expired,
	"estornado": Refunded,
}

// FromStored normalizes a status read from storage. Stored values may be
// internal names, older spellings or raw gateway codes; the result is total.
func FromStored(raw string) Status {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if s := Status(lower); s.Valid() {
		return s
	}
	if s, ok := legacyNames[lower]; ok {
		return s
	}
	return FromGateway(raw)
}
