package cli

import (
	"GDALedger/internal/core"
	"GDALedger/internal/ledger"
	"GDALedger/internal/state"
	"GDALedger/internal/store"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	quoteSize uint64
	quoteAt   int64
)

var quoteCmd = &cobra.Command{
	Use:   "quote <listing>",
	Short: "Price units of a listing from the local store",
	Long: `Quote reads the listing from the pebble store named by store.dir and
prints the price of --size units at --at (unix seconds, default now). The
store is opened directly, so the ledger must not be running against it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Dir == "" {
			return errors.New("quote needs a persistent store: set store.dir")
		}
		listing, err := ledger.PubkeyFromString(args[0])
		if err != nil {
			return err
		}
		at := quoteAt
		if at == 0 {
			at = time.Now().Unix()
		}

		kv, err := store.OpenPebble(cfg.Store.Dir)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer kv.Close()

		price, listingCfg, err := core.QuoteListing(state.NewReadTxn(kv, nil), listing, quoteSize, at)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"listing":   listing,
			"size":      quoteSize,
			"at":        at,
			"price":     decimal.NewFromUint64(price),
			"remaining": listingCfg.TokenSize - listingCfg.ItemsSold,
		})
	},
}

func init() {
	quoteCmd.Flags().Uint64Var(&quoteSize, "size", 1, "units to price")
	quoteCmd.Flags().Int64Var(&quoteAt, "at", 0, "unix time to price at (default now)")
	rootCmd.AddCommand(quoteCmd)
}
