package ledger

// Seed namespaces.
const (
	SeedPrefix        = "auction_house"
	SeedFeePayer      = "fee_payer"
	SeedSigner        = "signer"
	SeedAuctioneer    = "auctioneer"
	SeedListingConfig = "listing_config"
	SeedMetadata      = "metadata"
)

// Derived is a canonical address with its bump salt.
type Derived struct {
	Address Pubkey
	Bump    uint8
}

// AddressBook derives every record address the engine reads or writes.
// Listings live under the auctioneer program; houses, escrows and order
// records under the marketplace program; metadata under the metadata
// program.
type AddressBook struct {
	auctioneer Deriver
	house      Deriver
	metadata   Deriver
}

func NewAddressBook(auctioneerProgram, houseProgram, metadataProgram Pubkey) AddressBook {
	return AddressBook{
		auctioneer: NewDeriver(auctioneerProgram),
		house:      NewDeriver(houseProgram),
		metadata:   NewDeriver(metadataProgram),
	}
}

// DefaultAddressBook uses the well-known program ids.
func DefaultAddressBook() AddressBook {
	return NewAddressBook(AuctioneerProgramID, HouseProgramID, MetadataProgramID)
}

func (b AddressBook) AuctioneerProgram() Pubkey { return b.auctioneer.Program() }
func (b AddressBook) HouseProgram() Pubkey      { return b.house.Program() }

func find(d Deriver, seeds ...[]byte) (Derived, error) {
	addr, bump, err := d.FindAddress(seeds...)
	if err != nil {
		return Derived{}, err
	}
	return Derived{Address: addr, Bump: bump}, nil
}

// House derives the house record address from its creator and treasury mint.
func (b AddressBook) House(creator, treasuryMint Pubkey) (Derived, error) {
	return find(b.house, []byte(SeedPrefix), creator[:], treasuryMint[:])
}

func (b AddressBook) HouseFeeAccount(house Pubkey) (Derived, error) {
	return find(b.house, []byte(SeedPrefix), house[:], []byte(SeedFeePayer))
}

// AuctioneerRecord derives the delegate record binding an authority to a house.
func (b AddressBook) AuctioneerRecord(house, authority Pubkey) (Derived, error) {
	return find(b.house, []byte(SeedAuctioneer), house[:], authority[:])
}

func (b AddressBook) ProgramAsSigner() (Derived, error) {
	return find(b.house, []byte(SeedPrefix), []byte(SeedSigner))
}

// Listing derives the ledger entry address. One entry exists per
// (seller, house, asset account, treasury mint, asset mint, size).
func (b AddressBook) Listing(wallet, house, tokenAccount, treasuryMint, mint Pubkey, tokenSize uint64) (Derived, error) {
	return find(b.auctioneer,
		[]byte(SeedListingConfig),
		wallet[:], house[:], tokenAccount[:], treasuryMint[:], mint[:],
		U64Seed(tokenSize),
	)
}

// Escrow derives the buyer's escrow account in a house.
func (b AddressBook) Escrow(house, wallet Pubkey) (Derived, error) {
	return find(b.house, []byte(SeedPrefix), house[:], wallet[:])
}

// BuyerTradeState derives the order record address. Public orders carry
// the asset account as an extra seed component; non-public orders are
// keyed by buyer, house, mints and size only.
func (b AddressBook) BuyerTradeState(wallet, house, tokenAccount, treasuryMint, mint Pubkey, size uint64, public bool) (Derived, error) {
	if public {
		return find(b.house,
			[]byte(SeedPrefix), wallet[:], house[:], tokenAccount[:], treasuryMint[:], mint[:], U64Seed(size))
	}
	return find(b.house,
		[]byte(SeedPrefix), wallet[:], house[:], treasuryMint[:], mint[:], U64Seed(size))
}

// SellerTradeState derives a seller order address at a given price.
func (b AddressBook) SellerTradeState(wallet, house, tokenAccount, treasuryMint, mint Pubkey, price, size uint64) (Derived, error) {
	return find(b.house,
		[]byte(SeedPrefix), wallet[:], house[:], tokenAccount[:], treasuryMint[:], mint[:],
		U64Seed(price), U64Seed(size))
}

// Metadata derives the asset metadata address for a mint.
func (b AddressBook) Metadata(mint Pubkey) (Derived, error) {
	program := b.metadata.Program()
	return find(b.metadata, []byte(SeedMetadata), program[:], mint[:])
}
