package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type Service struct {
	db     *gorm.DB
	log    *logger.Logger
	driver string
}

// NewService opens the configured relational store (postgres or sqlite).
func NewService(cfg config.DBConfig, log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DBService", "driver", cfg.Driver)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		//1) Construct DSN
		serviceLog.Info("Attempting to construct DSN for Postgres now...")
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresName)
		serviceLog.Debug("Postgres DSN built :)", "host", cfg.PostgresHost, "port", cfg.PostgresPort, "dbname", cfg.PostgresName)
		dialector = postgres.Open(dsn)
	case "sqlite":
		//1) Make sure the parent directory exists
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.SQLitePath + "?_foreign_keys=on")
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", cfg.Driver)
	}

	//2) Attempt DB Connection
	serviceLog.Info("Attempting to connect to DB now...")
	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: cfg.Driver == "postgres",
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		serviceLog.Error("Failed to connect to DB", "error", err)
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	serviceLog.Info("Successfully Connected to DB :)")
	return &Service{db: gdb, log: serviceLog, driver: cfg.Driver}, nil
}

// NewServiceFromDB wraps an already open handle (tests, embedded use).
func NewServiceFromDB(gdb *gorm.DB, driver string, log *logger.Logger) *Service {
	return &Service{db: gdb, log: log.With("service", "DBService", "driver", driver), driver: driver}
}

// Models lists every table, parents before children.
func Models() []interface{} {
	return []interface{}{
		&types.User{},
		&types.UserPreference{},
		&types.LLMConfiguration{},
		&types.SearchEngine{},
		&types.ProjectTemplate{},
		&types.Project{},
		&types.ProjectPlanVersion{},
		&types.File{},
		&types.Conversation{},
		&types.Message{},
	}
}

type foreignKey struct {
	table, name, column, refTable, onDelete string
}

var foreignKeys = []foreignKey{
	{"user_preference", "fk_user_preference_user_id", "user_id", "user", "CASCADE"},
	{"user_preference", "fk_user_preference_default_llm_config_id", "default_llm_config_id", "llm_configuration", "SET NULL"},
	{"llm_configuration", "fk_llm_configuration_user_id", "user_id", "user", "CASCADE"},
	{"search_engine", "fk_search_engine_user_id", "user_id", "user", "CASCADE"},
	{"project", "fk_project_user_id", "user_id", "user", "CASCADE"},
	{"project", "fk_project_template_id", "template_id", "project_template", "SET NULL"},
	{"project_plan_version", "fk_project_plan_version_project_id", "project_id", "project", "CASCADE"},
	{"file", "fk_file_user_id", "user_id", "user", "CASCADE"},
	{"file", "fk_file_project_id", "project_id", "project", "SET NULL"},
	{"conversation", "fk_conversation_user_id", "user_id", "user", "CASCADE"},
	{"conversation", "fk_conversation_llm_config_id", "llm_config_id", "llm_configuration", "SET NULL"},
	{"message", "fk_message_conversation_id", "conversation_id", "conversation", "CASCADE"},
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Starting AutoMigrateAll for all GORM models now...")
	if err := s.db.AutoMigrate(Models()...); err != nil {
		s.log.Error("AutoMigrateAll failed for Base Tables :(", "error", err)
		return err
	}
	s.log.Info("AutoMigrateAll completed successfully for Base Tables :)")

	// sqlite gets its constraints from the struct tags at table creation.
	if s.driver != "postgres" {
		return nil
	}
	s.log.Info("Configuring Foreign Key Relationships for Base Tables now...")
	for _, fk := range foreignKeys {
		if err := s.addForeignKey(fk); err != nil {
			return err
		}
	}
	s.log.Info("Successfully Added Foreign Key Relationships to Base Tables :)")
	return nil
}

func (s *Service) addForeignKey(fk foreignKey) error {
	var count int64
	if err := s.db.Raw(`SELECT COUNT(*) FROM pg_constraint WHERE conname = ?`, fk.name).Scan(&count).Error; err != nil {
		return fmt.Errorf("failed to look up %s: %w", fk.name, err)
	}
	if count > 0 {
		s.log.Debug("Foreign key already present", "constraint", fk.name)
		return nil
	}
	stmt := fmt.Sprintf(`ALTER TABLE %q ADD CONSTRAINT %q FOREIGN KEY (%q) REFERENCES %q ("id") ON DELETE %s`,
		fk.table, fk.name, fk.column, fk.refTable, fk.onDelete)
	if err := s.db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to add %s: %w", fk.name, err)
	}
	return nil
}

func (s *Service) DB() *gorm.DB {
	return s.db
}

func (s *Service) Driver() string {
	return s.driver
}

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
