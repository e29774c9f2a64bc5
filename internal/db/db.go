package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/darshan-hindocha/plexe-technical/internal/config"
	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
	"github.com/darshan-hindocha/plexe-technical/internal/types"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// New opens the metadata database. SQLite is the development default;
// Postgres is selected with DB_DRIVER=postgres and a DSN.
func New(cfg config.DBConfig, log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "db")

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}

	serviceLog.Info("connecting to metadata database", "driver", cfg.Driver)
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Service{db: gdb, log: serviceLog}, nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("migrating metadata tables")
	if err := s.db.AutoMigrate(&types.ModelRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *Service) DB() *gorm.DB { return s.db }
