package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tdcache/internal/source"
	tdsync "tdcache/internal/sync"
)

var pruneMissing bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Bring the cache up to date with its flat-file sources",
	Long: `Sync fingerprints every source file, decides what is stale, and performs
the minimal rebuild: full schema rebuild, reference reload, price merge, or
nothing. Running it again immediately is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		syn := &tdsync.Synchronizer{
			DBPath:       cfg.DBPath(),
			Refs:         &source.DirReader{Dir: cfg.Data.Dir},
			Prices:       &source.PricesFile{Path: cfg.PricesPath()},
			PruneMissing: pruneMissing || cfg.Prices.PruneMissing,
			Log:          log,
		}

		st, res, err := syn.Synchronize(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Printf("cache: %s\n", st.Path())
		fmt.Printf("verdict: %s\n", res.Verdict)
		if res.Verdict.Prices {
			m := res.Merge
			fmt.Printf("prices: %d inserted, %d updated, %d stale ignored, %d skipped, %d pruned\n",
				m.Inserted, m.Updated, m.StaleIgnored, m.Skipped, m.Pruned)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&pruneMissing, "prune-missing", false,
		"Remove batch-sourced price rows absent from the price file")
	rootCmd.AddCommand(syncCmd)
}
