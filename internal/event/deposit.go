package event

import "GDALedger/internal/ledger"

// RegisterAsset opens a token account. When Name is set, the metadata
// record of Mint is created at its canonical address as well.
type RegisterAsset struct {
	RequestID       string        `json:"request_id"`
	TokenAccount    ledger.Pubkey `json:"token_account"`
	Owner           ledger.Pubkey `json:"owner"`
	Mint            ledger.Pubkey `json:"mint"`
	Delegate        ledger.Pubkey `json:"delegate"`
	DelegatedAmount uint64        `json:"delegated_amount,omitempty"`
	Name            string        `json:"name,omitempty"`
	URI             string        `json:"uri,omitempty"`
}

func (r *RegisterAsset) IdempotencyKey() string    { return r.RequestID }
func (r *RegisterAsset) EventType() EventType      { return EventTypeRegisterAsset }
func (r *RegisterAsset) ListingID() *ledger.Pubkey { return nil }

// Deposit brings funds into the ledger from outside. Native deposits credit
// Account's native balance; token deposits credit the token account, which
// must already be registered with the same mint.
type Deposit struct {
	RequestID string        `json:"request_id"`
	Account   ledger.Pubkey `json:"account"`
	Mint      ledger.Pubkey `json:"mint"`
	Amount    uint64        `json:"amount"`
}

func (d *Deposit) IdempotencyKey() string    { return d.RequestID }
func (d *Deposit) EventType() EventType      { return EventTypeDeposit }
func (d *Deposit) ListingID() *ledger.Pubkey { return nil }
