package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tdcache/internal/store"
)

var buyingCmd = &cobra.Command{
	Use:   "buying ITEM",
	Short: "List stations buying an item, best price first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listListings(args[0], func(st *store.Store, itemID int64) ([]store.Listing, error) {
			return st.Buying(itemID)
		})
	},
}

var sellingCmd = &cobra.Command{
	Use:   "selling ITEM",
	Short: "List stations selling an item, cheapest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listListings(args[0], func(st *store.Store, itemID int64) ([]store.Listing, error) {
			return st.Selling(itemID)
		})
	},
}

func listListings(itemName string, query func(*store.Store, int64) ([]store.Listing, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return err
	}
	defer st.Close()

	item, err := st.ItemByName(itemName)
	if err != nil {
		return err
	}
	listings, err := query(st, item.ID)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		fmt.Printf("no listings for %s\n", item.Name)
		return nil
	}
	for _, l := range listings {
		fmt.Printf("station %-8d %8d cr  units %-8d modified %s\n",
			l.StationID, l.Price, l.Units, l.Modified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(buyingCmd)
	rootCmd.AddCommand(sellingCmd)
}
