package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rpgo/btc-annuity/internal/pricefeed"
)

var pricesCmd = &cobra.Command{
	Use:   "prices [input-file]",
	Short: "Load price history and export it to CSV or PostgreSQL",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)

		ctx := cmd.Context()
		prices, err := loadPrices(ctx, cfg.PriceSource, logger)
		if err != nil {
			return err
		}

		csvPath, _ := cmd.Flags().GetString("csv")
		dbURL, _ := cmd.Flags().GetString("postgres")

		if csvPath != "" {
			f, err := os.Create(csvPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", csvPath, err)
			}
			if err := pricefeed.WriteCSV(f, prices); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			logger.Infof("wrote %d prices to %s", len(prices), csvPath)
		}

		if dbURL != "" {
			pool, err := pricefeed.ConnectPostgres(ctx, dbURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			store := pricefeed.NewPostgresSource(pool)
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := store.Store(ctx, prices); err != nil {
				return err
			}
			logger.Infof("stored %d prices in postgres", len(prices))
		}

		if csvPath == "" && dbURL == "" {
			return pricefeed.WriteCSV(cmd.OutOrStdout(), prices)
		}
		return nil
	},
}
