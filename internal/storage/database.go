// Package storage persists the small amount of state the server keeps
// between requests: detected server capabilities and completed review
// records. Credentials are never stored here.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/difflens/difflens/internal/config"
)

type Database struct {
	db  *gorm.DB
	cfg config.DatabaseConfig
}

// NewDatabase opens the configured database and migrates the schema.
func NewDatabase(cfg config.DatabaseConfig) (*Database, error) {
	if cfg.Type == DBTypeSQLite {
		if dir := filepath.Dir(cfg.DSN); dir != "" && dir != "." && !isMemoryDSN(cfg.DSN) {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	dialer, err := NewDialectDialer(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialer.Dialect(), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := dialer.ConfigureConnection(db); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&ServerCapability{}, &ReviewRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	slog.Debug("database ready", "type", cfg.Type)
	return &Database{db: db, cfg: cfg}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying gorm handle.
func (d *Database) DB() *gorm.DB {
	return d.db
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || filepath.Base(dsn) == ":memory:" ||
		len(dsn) > 5 && dsn[:5] == "file:"
}
