package paymentstest

import (
	"context"
	"sync"
	"time"

	"github.com/multazero/backend/internal/recharge"
	"github.com/multazero/backend/internal/status"
)

// Recharger confirms pending or expired purchases held in a MemSource and
// counts one ledger credit per confirmation.
type Recharger struct {
	mu        sync.Mutex
	purchases *MemSource
	credits   map[string]int
	Err       error
}

func NewRecharger(purchases *MemSource) *Recharger {
	return &Recharger{purchases: purchases, credits: map[string]int{}}
}

func (r *Recharger) ConfirmByExternalID(ctx context.Context, externalID string, paidAt time.Time) (*recharge.Outcome, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	rec, err := r.purchases.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &recharge.Outcome{}, nil
	}
	if rec.Status != status.Pending && rec.Status != status.Expired {
		return &recharge.Outcome{Handled: true}, nil
	}
	ok, err := r.purchases.UpdateStatus(ctx, rec, status.Confirmed, &paidAt)
	if err != nil || !ok {
		return &recharge.Outcome{Handled: true}, err
	}
	r.mu.Lock()
	r.credits[externalID]++
	r.mu.Unlock()
	return &recharge.Outcome{Handled: true, Credited: true, PaymentID: rec.ID}, nil
}

// Credits reports how many ledger credits were written for externalID.
func (r *Recharger) Credits(externalID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.credits[externalID]
}
