package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create and/or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		dbService, err := openDB(cfg, log)
		if err != nil {
			return err
		}
		defer dbService.Close()
		log.Info("Migrations complete :)")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
