package core

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/ledger"
	"GDALedger/internal/state"
)

// Quote prices size units of a listing at the engine clock's current time
// without changing anything. Safe for concurrent use with Execute.
func (e *Engine) Quote(listing ledger.Pubkey, size uint64) (uint64, *auction.ListingConfig, error) {
	return e.QuoteAt(listing, size, e.clock.Now())
}

// QuoteAt prices size units of a listing at now.
func (e *Engine) QuoteAt(listing ledger.Pubkey, size uint64, now int64) (uint64, *auction.ListingConfig, error) {
	price, cfg, err := QuoteListing(state.NewReadTxn(e.kv, e.cache), listing, size, now)
	if e.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = auction.Kind(err)
		}
		e.metrics.QuotesComputed.WithLabelValues(outcome).Inc()
	}
	return price, cfg, err
}

// QuoteListing is the read-only pricing path shared by the engine and the
// CLI: load, check the auction is live, price.
func QuoteListing(txn *state.Txn, listing ledger.Pubkey, size uint64, now int64) (uint64, *auction.ListingConfig, error) {
	cfg, err := txn.GetListing(listing)
	if err != nil {
		return 0, nil, err
	}
	if err := auction.AssertActive(cfg, now); err != nil {
		return 0, cfg, err
	}
	price, err := cfg.CalculatePrice(size, now)
	if err != nil {
		return 0, cfg, err
	}
	return price, cfg, nil
}

// Listing reads a committed listing.
func (e *Engine) Listing(listing ledger.Pubkey) (*auction.ListingConfig, error) {
	return state.NewReadTxn(e.kv, e.cache).GetListing(listing)
}

// Now reads the engine clock.
func (e *Engine) Now() int64 {
	return e.clock.Now()
}
