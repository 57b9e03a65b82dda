package event

import "GDALedger/internal/ledger"

// RegisterHouse opens a marketplace instance. The house and fee account
// addresses are derived from Creator and TreasuryMint.
type RegisterHouse struct {
	RequestID       string        `json:"request_id"`
	Creator         ledger.Pubkey `json:"creator"`
	Authority       ledger.Pubkey `json:"authority"`
	TreasuryMint    ledger.Pubkey `json:"treasury_mint"`
	RequiresSignOff bool          `json:"requires_sign_off"`
}

func (r *RegisterHouse) IdempotencyKey() string    { return r.RequestID }
func (r *RegisterHouse) EventType() EventType      { return EventTypeRegisterHouse }
func (r *RegisterHouse) ListingID() *ledger.Pubkey { return nil }

// RegisterAuctioneer delegates a house's order flow to AuctioneerAuthority.
// Authority must be the house authority. A house has at most one delegate;
// registering again replaces it.
type RegisterAuctioneer struct {
	RequestID           string        `json:"request_id"`
	House               ledger.Pubkey `json:"house"`
	Authority           ledger.Pubkey `json:"authority"`
	AuctioneerAuthority ledger.Pubkey `json:"auctioneer_authority"`
}

func (r *RegisterAuctioneer) IdempotencyKey() string    { return r.RequestID }
func (r *RegisterAuctioneer) EventType() EventType      { return EventTypeRegisterAuctioneer }
func (r *RegisterAuctioneer) ListingID() *ledger.Pubkey { return nil }
