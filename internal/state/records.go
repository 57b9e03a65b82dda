// Package state is the engine's view of host accounts: typed records over
// a byte store, buffered per command and committed atomically.
package state

import "GDALedger/internal/ledger"

// TokenAccount holds a balance of one mint. The amount lives in the
// balance table under ledger.TokenAccountKey(Address, Mint).
type TokenAccount struct {
	Address         ledger.Pubkey
	Owner           ledger.Pubkey
	Mint            ledger.Pubkey
	Delegate        ledger.Pubkey
	DelegatedAmount uint64
}

// CanTransfer reports whether authority may move amount out of the account.
func (a *TokenAccount) CanTransfer(authority ledger.Pubkey, amount uint64) bool {
	if authority.Equal(a.Owner) {
		return true
	}
	return !a.Delegate.IsZero() && authority.Equal(a.Delegate) && a.DelegatedAmount >= amount
}

// Metadata describes an asset mint. It lives at the mint's derived
// metadata address.
type Metadata struct {
	Address         ledger.Pubkey
	Mint            ledger.Pubkey
	UpdateAuthority ledger.Pubkey
	Name            string
	URI             string
}

// EscrowAccount is a buyer's payment escrow in one house.
type EscrowAccount struct {
	Address ledger.Pubkey
	House   ledger.Pubkey
	Wallet  ledger.Pubkey
	Mint    ledger.Pubkey
	Bump    uint8
}

// BalanceKey returns the balance table key of the escrow's funds.
func (e *EscrowAccount) BalanceKey() ledger.AccountKey {
	return ledger.TokenAccountKey(e.Address, e.Mint)
}
