package ledger

import (
	"fmt"
	"math/bits"
)

// Storage sizes of the accounts the engine allocates.
const (
	TradeStateSize   = 1
	TokenAccountSize = 165
)

// Rent prices account storage. An account holding at least
// MinimumBalance(len) native units is exempt.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64 // years
	AccountOverhead     uint64 // bytes charged on top of the data length
}

// DefaultRent is the host's default schedule.
var DefaultRent = Rent{
	LamportsPerByteYear: 3480,
	ExemptionThreshold:  2,
	AccountOverhead:     128,
}

// MinimumBalance returns the rent-exempt floor for dataLen bytes.
func (r Rent) MinimumBalance(dataLen uint64) (uint64, error) {
	size, carry := bits.Add64(dataLen, r.AccountOverhead, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: account size %d", ErrBalanceOverflow, dataLen)
	}
	hi, perYear := bits.Mul64(size, r.LamportsPerByteYear)
	if hi != 0 {
		return 0, fmt.Errorf("%w: rent for %d bytes", ErrBalanceOverflow, dataLen)
	}
	hi, total := bits.Mul64(perYear, r.ExemptionThreshold)
	if hi != 0 {
		return 0, fmt.Errorf("%w: rent for %d bytes", ErrBalanceOverflow, dataLen)
	}
	return total, nil
}
