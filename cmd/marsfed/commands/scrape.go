package commands

import (
	"fmt"
	"time"

	"github.com/pevans/marsfed/marsdata"
	"github.com/pevans/marsfed/scraper"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes every source once and stores the result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()

		store, err := marsdata.NewStore(env.cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer store.Close()

		start := time.Now()
		record, err := env.aggregator(scraper.DefaultSources()).Scrape(cmd.Context())
		if err != nil {
			return fmt.Errorf("scrape failed: %w", err)
		}
		if err := store.Upsert(record); err != nil {
			return err
		}

		env.log("scrape").WithField("seconds", time.Since(start).Seconds()).Info("scrape complete")
		printRecord(cmd.OutOrStdout(), record)
		return nil
	},
}
