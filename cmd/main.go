package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/db"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "devforge",
	Short: "DevForge backend server",
	Long: `DevForge backend: chat with OpenAI-compatible LLM endpoints, browse GitHub,
analyze files and generate projects from templates.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, *logger.Logger, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	cfg, err := config.Load(log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func openDB(cfg *config.Config, log *logger.Logger) (*db.Service, error) {
	log.Info("Setting Up DB from Main now...")
	dbService, err := db.NewService(cfg.DB, log)
	if err != nil {
		return nil, err
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		dbService.Close()
		return nil, fmt.Errorf("auto migration failed: %w", err)
	}
	log.Info("DB Setup From Main Successful :)")
	return dbService, nil
}
