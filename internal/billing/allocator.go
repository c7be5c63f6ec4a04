package billing

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRequest marks an allocation request for zero or negative months.
var ErrInvalidRequest = errors.New("billing: requested months must be positive")

// OverpaymentError rejects a request for more months than are pending. It
// carries the actual pending count so callers can correct the input.
type OverpaymentError struct {
	Requested int
	Pending   int
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("cannot pay for %d months, only %d pending", e.Requested, e.Pending)
}

// ConsistencyError signals that the walk found fewer unpaid months than the
// pending count promised. The ledger state is suspect and no payment must be
// recorded from such an allocation.
type ConsistencyError struct {
	Requested int
	Allocated int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("allocated %d of %d requested months, payment history is inconsistent", e.Allocated, e.Requested)
}

// Allocate maps a "pay for N months" request onto the N oldest unpaid
// billing months, walking forward from the admission month through the asOf
// month and skipping every month any existing payment already covers. The
// paid set is rebuilt from the full payment history on every call so the
// result stays correct after out-of-order deletions.
func Allocate(acct Account, payments []PaymentRecord, requested int, asOf time.Time) ([]Month, error) {
	if requested <= 0 {
		return nil, ErrInvalidRequest
	}

	pending := PendingMonths(acct, payments, asOf)
	if requested > pending {
		return nil, &OverpaymentError{Requested: requested, Pending: pending}
	}

	paid := make(map[string]struct{})
	for _, p := range payments {
		for _, m := range p.Months {
			paid[m.Key()] = struct{}{}
		}
	}

	allocated := make([]Month, 0, requested)
	cursor := MonthOf(acct.AdmissionDate)
	last := MonthOf(asOf)
	for len(allocated) < requested && !cursor.After(last) {
		if _, ok := paid[cursor.Key()]; !ok {
			allocated = append(allocated, cursor)
		}
		cursor = cursor.Next()
	}

	if len(allocated) < requested {
		return nil, &ConsistencyError{Requested: requested, Allocated: len(allocated)}
	}
	return allocated, nil
}
