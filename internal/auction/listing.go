package auction

import (
	fpmath "GDALedger/internal/math"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

const (
	// ListingConfigSize is the persisted width of a ListingConfig.
	ListingConfigSize = 8 + 8 + 8 + 1 + 8 + 8 + 8 + 1

	// AuctioneerBuyerPrice is the price of the sell order delegated to the
	// marketplace. Nobody can match it directly; only this engine's
	// computed price settles a listing.
	AuctioneerBuyerPrice uint64 = math.MaxUint64
)

// ListingParams are the seller-chosen parameters of a new listing.
type ListingParams struct {
	TokenSize    uint64
	StartPrice   uint64
	DecayConst   uint8
	ScaleFactor  uint64
	EndTimestamp int64
}

// ListingConfig is the persisted state of one gradual Dutch auction.
//
// DecayConst, ScaleFactor and FirstInitTimestamp never change after
// creation. ItemsSold never exceeds TokenSize.
type ListingConfig struct {
	TokenSize          uint64
	ItemsSold          uint64
	StartPrice         uint64
	DecayConst         uint8
	ScaleFactor        uint64
	FirstInitTimestamp int64
	EndTimestamp       int64
	Bump               uint8
}

// NewListingConfig opens a listing at now.
func NewListingConfig(p ListingParams, now int64, bump uint8) (*ListingConfig, error) {
	c := &ListingConfig{
		TokenSize:          p.TokenSize,
		StartPrice:         p.StartPrice,
		DecayConst:         p.DecayConst,
		ScaleFactor:        p.ScaleFactor,
		FirstInitTimestamp: now,
		EndTimestamp:       p.EndTimestamp,
		Bump:               bump,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the structural invariants of a listing.
func (c *ListingConfig) Validate() error {
	switch {
	case c.TokenSize == 0:
		return fmt.Errorf("%w: token size must be positive", ErrInvalidListingParams)
	case c.ScaleFactor <= 1:
		return fmt.Errorf("%w: scale factor must exceed 1, got %d", ErrInvalidListingParams, c.ScaleFactor)
	case c.EndTimestamp <= c.FirstInitTimestamp:
		return fmt.Errorf("%w: end %d not after start %d", ErrInvalidListingParams, c.EndTimestamp, c.FirstInitTimestamp)
	case c.ItemsSold > c.TokenSize:
		return fmt.Errorf("%w: %d of %d sold", ErrInvalidListingParams, c.ItemsSold, c.TokenSize)
	}
	return nil
}

// Remaining returns the unsold quantity.
func (c *ListingConfig) Remaining() uint64 {
	return c.TokenSize - c.ItemsSold
}

// CalculatePrice returns the cumulative price of the next orderSize units
// at now:
//
//	k * a^m * (a^q - 1) / (e^(λt) * (a - 1))
//
// with k the start price, a the scale factor, m the items sold, q the
// order size, λ the decay constant and t the seconds since the listing
// opened. Every rounding step rounds the price up.
func (c *ListingConfig) CalculatePrice(orderSize uint64, now int64) (uint64, error) {
	if now < c.FirstInitTimestamp {
		return 0, fmt.Errorf("%w: clock %d before listing start %d", ErrNumericalOverflow, now, c.FirstInitTimestamp)
	}
	elapsed := uint64(now - c.FirstInitTimestamp)
	hi, exp := bits.Mul64(elapsed, uint64(c.DecayConst))
	if hi != 0 {
		return 0, fmt.Errorf("%w: decay exponent", ErrNumericalOverflow)
	}

	k := fpmath.FromInteger(c.StartPrice)
	a := fpmath.FromInteger(c.ScaleFactor)
	one := fpmath.FromInteger(1)

	aM, err := a.PowWithAccuracy(c.ItemsSold)
	if err != nil {
		return 0, fmt.Errorf("scale factor ^ items sold: %w", err)
	}
	aQ, err := a.PowWithAccuracy(orderSize)
	if err != nil {
		return 0, fmt.Errorf("scale factor ^ order size: %w", err)
	}
	decay, err := fpmath.Euler().PowWithAccuracy(exp)
	if err != nil {
		return 0, fmt.Errorf("decay e^%d: %w", exp, err)
	}

	num1, err := k.Mul(aM)
	if err != nil {
		return 0, fmt.Errorf("numerator: %w", err)
	}
	num2, err := aQ.Sub(one)
	if err != nil {
		return 0, fmt.Errorf("numerator: %w", err)
	}
	num, err := num1.Mul(num2)
	if err != nil {
		return 0, fmt.Errorf("numerator: %w", err)
	}

	den2, err := a.Sub(one)
	if err != nil {
		return 0, fmt.Errorf("denominator: %w", err)
	}
	den, err := decay.Mul(den2)
	if err != nil {
		return 0, fmt.Errorf("denominator: %w", err)
	}

	price, err := num.DivUp(den)
	if err != nil {
		return 0, fmt.Errorf("price: %w", err)
	}
	if price, err = price.RescaleUp(0); err != nil {
		return 0, fmt.Errorf("price: %w", err)
	}
	out, err := price.Uint64()
	if err != nil {
		return 0, fmt.Errorf("price exceeds 64 bits: %w", err)
	}
	return out, nil
}

// RecordSale adds a settled quantity to ItemsSold.
func (c *ListingConfig) RecordSale(quantity uint64) error {
	if quantity == 0 || quantity > c.Remaining() {
		return fmt.Errorf("%w: cannot sell %d of %d remaining", ErrInvalidTokenAmount, quantity, c.Remaining())
	}
	c.ItemsSold += quantity
	return nil
}

// MarshalBinary encodes the fixed little-endian layout.
func (c *ListingConfig) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ListingConfigSize)
	le := binary.LittleEndian
	le.PutUint64(buf[0:], c.TokenSize)
	le.PutUint64(buf[8:], c.ItemsSold)
	le.PutUint64(buf[16:], c.StartPrice)
	buf[24] = c.DecayConst
	le.PutUint64(buf[25:], c.ScaleFactor)
	le.PutUint64(buf[33:], uint64(c.FirstInitTimestamp))
	le.PutUint64(buf[41:], uint64(c.EndTimestamp))
	buf[49] = c.Bump
	return buf, nil
}

// UnmarshalBinary decodes the fixed little-endian layout.
func (c *ListingConfig) UnmarshalBinary(data []byte) error {
	if len(data) != ListingConfigSize {
		return fmt.Errorf("%w: %d bytes, want %d", ErrInvalidListingData, len(data), ListingConfigSize)
	}
	le := binary.LittleEndian
	c.TokenSize = le.Uint64(data[0:])
	c.ItemsSold = le.Uint64(data[8:])
	c.StartPrice = le.Uint64(data[16:])
	c.DecayConst = data[24]
	c.ScaleFactor = le.Uint64(data[25:])
	c.FirstInitTimestamp = int64(le.Uint64(data[33:]))
	c.EndTimestamp = int64(le.Uint64(data[41:]))
	c.Bump = data[49]
	return nil
}
