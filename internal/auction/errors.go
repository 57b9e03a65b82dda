package auction

import (
	fpmath "GDALedger/internal/math"
	"errors"
)

// Lifecycle and authorization failures. Every one of them aborts the
// command that raised it.
var (
	ErrAuctionNotStarted      = errors.New("auction not started")
	ErrAuctionEnded           = errors.New("auction ended")
	ErrAuctionActive          = errors.New("auction still active")
	ErrInvalidAuctioneer      = errors.New("invalid auctioneer")
	ErrPublicKeyMismatch      = errors.New("public key mismatch")
	ErrBumpSeedMismatch       = errors.New("bump seed mismatch")
	ErrNoAuctioneerProgramSet = errors.New("no auctioneer program set")
	ErrMetadataMismatch       = errors.New("metadata mismatch")
	ErrNoValidSignerPresent   = errors.New("no valid signer present")
	ErrInvalidListingParams   = errors.New("invalid listing parameters")
	ErrInvalidListingData     = errors.New("invalid listing data")
	ErrListingExists          = errors.New("listing already exists")
	ErrListingNotFound        = errors.New("listing not found")
	ErrInvalidTokenAmount     = errors.New("invalid token amount")
	ErrAccountExists          = errors.New("account already exists")
	ErrOrderNotFound          = errors.New("order record not found")

	ErrNumericalOverflow = fpmath.ErrNumericalOverflow
	ErrDifferentScale    = fpmath.ErrDifferentScale
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrAuctionNotStarted, "AuctionNotStarted"},
	{ErrAuctionEnded, "AuctionEnded"},
	{ErrAuctionActive, "AuctionActive"},
	{ErrInvalidAuctioneer, "InvalidAuctioneer"},
	{ErrPublicKeyMismatch, "PublicKeyMismatch"},
	{ErrBumpSeedMismatch, "BumpSeedMismatch"},
	{ErrNoAuctioneerProgramSet, "NoAuctioneerProgramSet"},
	{ErrMetadataMismatch, "MetadataMismatch"},
	{ErrNoValidSignerPresent, "NoValidSignerPresent"},
	{ErrInvalidListingParams, "InvalidListingParams"},
	{ErrInvalidListingData, "InvalidListingData"},
	{ErrListingExists, "ListingExists"},
	{ErrListingNotFound, "ListingNotFound"},
	{ErrInvalidTokenAmount, "InvalidTokenAmount"},
	{ErrAccountExists, "AccountExists"},
	{ErrOrderNotFound, "OrderNotFound"},
	{ErrDifferentScale, "DifferentScale"},
	{ErrNumericalOverflow, "NumericalOverflow"},
}

// Kind names the error kind of err, or "Internal" when it is not one of
// the package sentinels.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}
