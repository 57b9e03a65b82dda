package ledger

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// PubkeyLength is the width of an account address in bytes.
const PubkeyLength = 32

// ErrInvalidPubkey is returned for text that is not a base58 32-byte key.
var ErrInvalidPubkey = errors.New("invalid public key")

// Pubkey identifies an account: a wallet, a token account, a mint or a
// derived record address.
type Pubkey [PubkeyLength]byte

var (
	// NativeMint denominates the host's native currency.
	NativeMint = MustPubkey("So11111111111111111111111111111111111111112")

	// Program namespaces used for address derivation.
	AuctioneerProgramID = MustPubkey("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS")
	HouseProgramID      = MustPubkey("hausS13jsjafwWwGqZTUQRmWyvyxn9EQpqMwV1PBBmk")
	MetadataProgramID   = MustPubkey("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

// PubkeyFromString decodes a base58 key.
func PubkeyFromString(s string) (Pubkey, error) {
	var p Pubkey
	raw := base58.Decode(s)
	if len(raw) != PubkeyLength {
		return p, fmt.Errorf("%w: %q", ErrInvalidPubkey, s)
	}
	copy(p[:], raw)
	return p, nil
}

// MustPubkey is PubkeyFromString for package-level constants.
func MustPubkey(s string) Pubkey {
	p, err := PubkeyFromString(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PubkeyFromBytes copies a 32-byte slice.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeyLength {
		return p, fmt.Errorf("%w: %d bytes", ErrInvalidPubkey, len(b))
	}
	copy(p[:], b)
	return p, nil
}

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) Bytes() []byte {
	return p[:]
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// Equal compares in constant time.
func (p Pubkey) Equal(o Pubkey) bool {
	return subtle.ConstantTimeCompare(p[:], o[:]) == 1
}

func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := PubkeyFromString(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
