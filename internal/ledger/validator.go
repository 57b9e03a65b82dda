package ledger

import (
	"errors"
	"fmt"
)

// ErrInvariantViolated marks a post-condition failure. The command that
// produced it must be discarded.
var ErrInvariantViolated = errors.New("ledger invariant violated")

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies the batch is well-formed.
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateCovers checks that an account holds at least required after a
// top-up.
func (v *InvariantValidator) ValidateCovers(key AccountKey, required uint64) error {
	have, err := v.tracker.GetBalance(key)
	if err != nil {
		return err
	}
	if have < required {
		return fmt.Errorf("%w: %s holds %d, must cover %d",
			ErrInvariantViolated, key.AccountPath(), have, required)
	}
	return nil
}

// NetFlows sums signed balance changes per denomination, excluding the
// external boundary. Transfers between tracked accounts net to zero, so a
// non-zero total equals what entered from outside.
func NetFlows(batch *Batch) map[Pubkey]int64 {
	totals := make(map[Pubkey]int64)
	for _, j := range batch.Journals {
		if !j.CreditAccount.IsExternal() {
			totals[j.CreditAccount.Denomination] -= int64(j.Amount)
		}
		totals[j.DebitAccount.Denomination] += int64(j.Amount)
	}
	return totals
}
