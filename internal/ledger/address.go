package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32

	derivationMarker = "ProgramDerivedAddress"
)

var (
	ErrInvalidSeeds  = errors.New("invalid address seeds")
	ErrOnCurve       = errors.New("derived address is on the ed25519 curve")
	ErrNoViableBump  = errors.New("no viable bump seed")
	ErrAddressNotPDA = errors.New("address does not match derivation")
)

// Deriver derives record addresses inside one program namespace. An
// address is SHA-256(seeds || bump || program || marker) and is only valid
// when it is not an ed25519 point, so no private key can sign for it.
type Deriver struct {
	program Pubkey
}

func NewDeriver(program Pubkey) Deriver {
	return Deriver{program: program}
}

func (d Deriver) Program() Pubkey {
	return d.program
}

// CreateAddress derives the address for an explicit bump salt.
func (d Deriver) CreateAddress(bump uint8, seeds ...[]byte) (Pubkey, error) {
	if len(seeds)+1 > MaxSeeds {
		return Pubkey{}, fmt.Errorf("%w: %d seeds", ErrInvalidSeeds, len(seeds))
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLength {
			return Pubkey{}, fmt.Errorf("%w: seed of %d bytes", ErrInvalidSeeds, len(s))
		}
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write(d.program[:])
	h.Write([]byte(derivationMarker))

	var out Pubkey
	copy(out[:], h.Sum(nil))
	if onCurve(out[:]) {
		return Pubkey{}, ErrOnCurve
	}
	return out, nil
}

// FindAddress returns the canonical address: the first valid one scanning
// bumps from 255 down to 0.
func (d Deriver) FindAddress(seeds ...[]byte) (Pubkey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := d.CreateAddress(uint8(bump), seeds...)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Pubkey{}, 0, err
		}
	}
	return Pubkey{}, 0, ErrNoViableBump
}

func onCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// U64Seed encodes an integer seed little-endian.
func U64Seed(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}
