package gatewaysync

import (
	"github.com/google/uuid"

	"github.com/multazero/backend/internal/models"
	"github.com/multazero/backend/internal/status"
)

// SyncResult summarizes one company pull.
type SyncResult struct {
	CompanyID          uuid.UUID `json:"company_id"`
	Pulled             int       `json:"pulled"`
	Inserted           int       `json:"inserted"`
	AlreadyExisted     int       `json:"already_existed"`
	Failed             int       `json:"failed"`
	Failures           []Failure `json:"failures,omitempty"`
	Warning            string    `json:"warning,omitempty"`
	CredentialsMissing bool      `json:"credentials_missing"`
}

type Failure struct {
	ExternalID string `json:"external_id"`
	Error      string `json:"error"`
}

// SingleSyncResult describes a force-sync of one payment.
type SingleSyncResult struct {
	ExternalID     string        `json:"external_id"`
	PaymentID      uuid.UUID     `json:"payment_id"`
	Source         models.Source `json:"source"`
	PreviousStatus status.Status `json:"previous_status,omitempty"`
	Status         status.Status `json:"status"`
	GatewayStatus  string        `json:"gateway_status"`
	Inserted       bool          `json:"inserted"`
	Changed        bool          `json:"changed"`
}

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeExisted
	outcomeFailed
)

// rowResult is what processing a single pulled payment produced.
type rowResult struct {
	externalID string
	outcome    outcome
	err        error
}

// fold tallies row results into r.
func (r *SyncResult) fold(rows []rowResult) {
	for _, row := range rows {
		switch row.outcome {
		case outcomeInserted:
			r.Inserted++
		case outcomeExisted:
			r.AlreadyExisted++
		default:
			r.Failed++
			msg := "unknown error"
			if row.err != nil {
				msg = row.err.Error()
			}
			r.Failures = append(r.Failures, Failure{ExternalID: row.externalID, Error: msg})
		}
	}
}
