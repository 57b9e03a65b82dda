package ledger

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// Balances is the storage a BalanceTracker reads and writes.
type Balances interface {
	GetBalance(key AccountKey) (uint64, error)
	SetBalance(key AccountKey, amount uint64) error
}

// BalanceTracker applies journal batches to a Balances store with checked
// arithmetic. A batch is evaluated in full before anything is written.
type BalanceTracker struct {
	store Balances
}

func NewBalanceTracker(store Balances) *BalanceTracker {
	return &BalanceTracker{store: store}
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) (uint64, error) {
	return bt.store.GetBalance(key)
}

// ApplyBatch applies all journals in a batch, or none of them.
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	next := make(map[AccountKey]uint64)
	load := func(key AccountKey) (uint64, error) {
		if v, ok := next[key]; ok {
			return v, nil
		}
		return bt.store.GetBalance(key)
	}

	for _, j := range batch.Journals {
		if !j.CreditAccount.IsExternal() {
			have, err := load(j.CreditAccount)
			if err != nil {
				return err
			}
			if have < j.Amount {
				return fmt.Errorf("%w: %s has %d, needs %d",
					ErrInsufficientFunds, j.CreditAccount.AccountPath(), have, j.Amount)
			}
			next[j.CreditAccount] = have - j.Amount
		}

		have, err := load(j.DebitAccount)
		if err != nil {
			return err
		}
		sum, carry := bits.Add64(have, j.Amount, 0)
		if carry != 0 {
			return fmt.Errorf("%w: %s", ErrBalanceOverflow, j.DebitAccount.AccountPath())
		}
		next[j.DebitAccount] = sum
	}

	keys := make([]AccountKey, 0, len(next))
	for k := range next {
		keys = append(keys, k)
	}
	SortAccountKeys(keys)

	for _, k := range keys {
		if err := bt.store.SetBalance(k, next[k]); err != nil {
			return err
		}
	}
	return nil
}

// Transfer moves amount from credit to debit at once and records the
// journal in batch. A zero amount is a no-op.
func (bt *BalanceTracker) Transfer(batch *Batch, debit, credit AccountKey, amount uint64, typ JournalType) error {
	if amount == 0 {
		return nil
	}
	single := &Batch{
		BatchID:   batch.BatchID,
		EventRef:  batch.EventRef,
		Sequence:  batch.Sequence,
		Timestamp: batch.Timestamp,
	}
	single.Add(debit, credit, amount, typ)
	if err := bt.ApplyBatch(single); err != nil {
		return err
	}
	batch.Journals = append(batch.Journals, single.Journals...)
	return nil
}

// ValidateSufficient checks that an account can cover a debit.
func (bt *BalanceTracker) ValidateSufficient(key AccountKey, required uint64) error {
	have, err := bt.store.GetBalance(key)
	if err != nil {
		return err
	}
	if have < required {
		return fmt.Errorf("%w: have=%d, need=%d", ErrInsufficientFunds, have, required)
	}
	return nil
}

// SortAccountKeys orders keys by AccountPath.
func SortAccountKeys(keys []AccountKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].AccountPath() < keys[j].AccountPath()
	})
}

// MemoryBalances is a map-backed Balances.
type MemoryBalances struct {
	balances map[AccountKey]uint64
}

func NewMemoryBalances() *MemoryBalances {
	return &MemoryBalances{balances: make(map[AccountKey]uint64)}
}

func (m *MemoryBalances) GetBalance(key AccountKey) (uint64, error) {
	return m.balances[key], nil
}

func (m *MemoryBalances) SetBalance(key AccountKey, amount uint64) error {
	m.balances[key] = amount
	return nil
}

// Snapshot returns a copy of all balances
func (m *MemoryBalances) Snapshot() map[AccountKey]uint64 {
	snapshot := make(map[AccountKey]uint64, len(m.balances))
	for k, v := range m.balances {
		snapshot[k] = v
	}
	return snapshot
}
