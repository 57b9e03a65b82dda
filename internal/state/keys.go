package state

import "GDALedger/internal/ledger"

// Key prefixes. Every record key is prefix || address.
const (
	prefixListing    = 'l'
	prefixHouse      = 'h'
	prefixAuctioneer = 'a'
	prefixToken      = 't'
	prefixMetadata   = 'm'
	prefixEscrow     = 'e'
	prefixOrder      = 'o'
	prefixBalance    = 'b'
	prefixMeta       = 'z'
)

func recordKey(prefix byte, addr ledger.Pubkey) []byte {
	k := make([]byte, 0, 1+ledger.PubkeyLength)
	k = append(k, prefix)
	return append(k, addr[:]...)
}

func balanceKey(key ledger.AccountKey) []byte {
	return append([]byte{prefixBalance}, key.StorageKey()...)
}

func metaKey(name string) []byte {
	return append([]byte{prefixMeta}, name...)
}

// ListingPrefix is the key prefix of every listing record.
func ListingPrefix() []byte { return []byte{prefixListing} }
