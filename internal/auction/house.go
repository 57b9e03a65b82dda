package auction

import "GDALedger/internal/ledger"

// House is the marketplace instance a listing trades in.
type House struct {
	Address      ledger.Pubkey `json:"address"`
	Creator      ledger.Pubkey `json:"creator"`
	Authority    ledger.Pubkey `json:"authority"`
	TreasuryMint ledger.Pubkey `json:"treasury_mint"`
	FeeAccount   ledger.Pubkey `json:"fee_account"`
	Bump         uint8         `json:"bump"`
	FeePayerBump uint8         `json:"fee_payer_bump"`

	// RequiresSignOff makes the house authority approve every order; the
	// buyer then pays allocation fees.
	RequiresSignOff bool `json:"requires_sign_off"`

	// HasAuctioneer and AuctioneerAddress register the single delegate
	// record allowed to act for this house.
	HasAuctioneer     bool          `json:"has_auctioneer"`
	AuctioneerAddress ledger.Pubkey `json:"auctioneer_address"`
}

// IsNative reports whether the house settles in the native currency.
func (h *House) IsNative() bool {
	return h.TreasuryMint == ledger.NativeMint
}

// AuctioneerRecord delegates a house's order flow to an authority.
type AuctioneerRecord struct {
	Address             ledger.Pubkey `json:"address"`
	AuctionHouse        ledger.Pubkey `json:"auction_house"`
	AuctioneerAuthority ledger.Pubkey `json:"auctioneer_authority"`
	Bump                uint8         `json:"bump"`
}
