package state

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/ledger"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ListingCache keeps recently read listings decoded. Safe for concurrent
// use: quotes read it while the core writes through it.
type ListingCache struct {
	cache *lru.Cache[ledger.Pubkey, auction.ListingConfig]
}

func NewListingCache(size int) (*ListingCache, error) {
	c, err := lru.New[ledger.Pubkey, auction.ListingConfig](size)
	if err != nil {
		return nil, err
	}
	return &ListingCache{cache: c}, nil
}

func (c *ListingCache) Get(addr ledger.Pubkey) (auction.ListingConfig, bool) {
	return c.cache.Get(addr)
}

func (c *ListingCache) Add(addr ledger.Pubkey, cfg auction.ListingConfig) {
	c.cache.Add(addr, cfg)
}

func (c *ListingCache) Remove(addr ledger.Pubkey) {
	c.cache.Remove(addr)
}

func (c *ListingCache) Len() int { return c.cache.Len() }
