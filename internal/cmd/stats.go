package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"tdcache/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-table row counts for the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.DBPath())
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.GetStats()
		if err != nil {
			return err
		}

		names := make([]string, 0, len(stats.Tables))
		for name := range stats.Tables {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-16s %d\n", name, stats.Tables[name])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
