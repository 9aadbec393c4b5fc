package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create store schema and indexes",
	Long: `Create the Postgres tables and the MongoDB 2dsphere/TTL indexes for the
configured store drivers. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		b, err := openBackends(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		return b.Migrate(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
