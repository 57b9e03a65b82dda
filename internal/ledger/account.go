package ledger

import "fmt"

// AccountKey identifies one balance: a holder account in one denomination.
// Native balances use NativeMint.
type AccountKey struct {
	Holder       Pubkey
	Denomination Pubkey
}

// NativeAccountKey keys the native balance of an account.
func NativeAccountKey(holder Pubkey) AccountKey {
	return AccountKey{Holder: holder, Denomination: NativeMint}
}

// TokenAccountKey keys a token balance.
func TokenAccountKey(holder, mint Pubkey) AccountKey {
	return AccountKey{Holder: holder, Denomination: mint}
}

// ExternalAccountKey is the boundary account funds enter the ledger from.
// It has no holder and is never debited below zero.
func ExternalAccountKey(denomination Pubkey) AccountKey {
	return AccountKey{Denomination: denomination}
}

func (k AccountKey) IsExternal() bool {
	return k.Holder.IsZero()
}

func (k AccountKey) IsNative() bool {
	return k.Denomination == NativeMint
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch {
	case k.IsExternal():
		return fmt.Sprintf("external:%s", k.Denomination)
	case k.IsNative():
		return fmt.Sprintf("native:%s", k.Holder)
	default:
		return fmt.Sprintf("token:%s:%s", k.Holder, k.Denomination)
	}
}

// StorageKey is a fixed-width binary encoding used as a store key suffix.
func (k AccountKey) StorageKey() []byte {
	out := make([]byte, 0, 2*PubkeyLength)
	out = append(out, k.Holder[:]...)
	return append(out, k.Denomination[:]...)
}
