package main

import (
	"github.com/spf13/cobra"

	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Sync project templates from the built-in and TEMPLATE_DIR manifests",
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
		return seed.SeedAll(cmd.Context(), dbService.DB(), repos.NewTemplateRepo(dbService.DB(), log), cfg.Templates, log)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
