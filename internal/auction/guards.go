package auction

import (
	"GDALedger/internal/ledger"
	"fmt"
)

// AssertActive fails unless the listing accepts orders at now.
func AssertActive(c *ListingConfig, now int64) error {
	if now < c.FirstInitTimestamp {
		return ErrAuctionNotStarted
	}
	if now > c.EndTimestamp || c.ItemsSold == c.TokenSize {
		return ErrAuctionEnded
	}
	return nil
}

// AssertOver fails while the listing is still running.
func AssertOver(c *ListingConfig, now int64) error {
	if now < c.EndTimestamp {
		return ErrAuctionActive
	}
	return nil
}

// AssertValidDelegate checks the chain house -> delegate record ->
// claimed authority. Every mismatch is reported as ErrInvalidAuctioneer.
func AssertValidDelegate(house *House, claimedAuthority ledger.Pubkey, delegate *AuctioneerRecord) error {
	if AssertKeysEqual(house.AuctioneerAddress, delegate.Address) != nil {
		return ErrInvalidAuctioneer
	}
	if !VerifyDelegate(claimedAuthority, delegate.AuctioneerAuthority, delegate.AuctionHouse, house.Address) {
		return ErrInvalidAuctioneer
	}
	return nil
}

// VerifyDelegate is the address-independent part of the delegate check:
// the record's authority is the claimed one and the record belongs to the
// calling house.
func VerifyDelegate(claimed, registeredAuthority, registeredHouse, callerHouse ledger.Pubkey) bool {
	return claimed.Equal(registeredAuthority) && registeredHouse.Equal(callerHouse)
}

// AssertKeysEqual fails with ErrPublicKeyMismatch when a != b.
func AssertKeysEqual(a, b ledger.Pubkey) error {
	if !a.Equal(b) {
		return ErrPublicKeyMismatch
	}
	return nil
}

// AssertDerived checks a presented address and bump against the canonical
// derivation. A wrong bump is ErrBumpSeedMismatch; a wrong address with the
// right bump is ErrPublicKeyMismatch.
func AssertDerived(canonical ledger.Derived, presented ledger.Pubkey, bump uint8) error {
	if bump != canonical.Bump {
		return fmt.Errorf("%w: got %d, want %d", ErrBumpSeedMismatch, bump, canonical.Bump)
	}
	return AssertKeysEqual(canonical.Address, presented)
}
