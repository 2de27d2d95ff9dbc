package storage

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"

	"github.com/difflens/difflens/internal/config"
)

// Database type identifiers accepted in configuration
const (
	DBTypeSQLite     = "sqlite"
	DBTypePostgres   = "postgres"
	DBTypePostgreSQL = "postgresql"
	DBTypeSQLServer  = "sqlserver"
	DBTypeMSSQL      = "mssql"
)

// DialectDialer creates a GORM dialector based on the database type
type DialectDialer interface {
	Dialect() gorm.Dialector
	ConfigureConnection(*gorm.DB) error
}

// NewDialectDialer creates a dialect dialer based on the database configuration
func NewDialectDialer(cfg config.DatabaseConfig) (DialectDialer, error) {
	switch cfg.Type {
	case DBTypeSQLite:
		return &SQLiteDialect{cfg: cfg}, nil
	case DBTypePostgres, DBTypePostgreSQL:
		return &PostgresDialect{cfg: cfg}, nil
	case DBTypeSQLServer, DBTypeMSSQL:
		return &SQLServerDialect{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// SQLiteDialect handles SQLite-specific configuration
type SQLiteDialect struct {
	cfg config.DatabaseConfig
}

func (d *SQLiteDialect) Dialect() gorm.Dialector {
	// Add _parseTime=true to DSN to parse DATETIME columns correctly
	dsn := d.cfg.DSN
	if !strings.Contains(dsn, "?") {
		dsn += "?_parseTime=true"
	} else if !strings.Contains(dsn, "_parseTime") {
		dsn += "&_parseTime=true"
	}
	return sqlite.Open(dsn)
}

func (d *SQLiteDialect) ConfigureConnection(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// SQLite doesn't benefit from many connections due to write serialization
	maxOpenConns := d.cfg.MaxOpenConns
	if maxOpenConns == 0 {
		maxOpenConns = 1
	}
	maxIdleConns := d.cfg.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 1
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime(d.cfg))

	// Enable WAL mode for better concurrency
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := db.Exec("PRAGMA foreign_keys=ON").Error; err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return nil
}

// PostgresDialect handles PostgreSQL-specific configuration
type PostgresDialect struct {
	cfg config.DatabaseConfig
}

func (d *PostgresDialect) Dialect() gorm.Dialector {
	return postgres.Open(d.cfg.DSN)
}

func (d *PostgresDialect) ConfigureConnection(db *gorm.DB) error {
	return configurePool(db, d.cfg)
}

// SQLServerDialect handles SQL Server-specific configuration
type SQLServerDialect struct {
	cfg config.DatabaseConfig
}

func (d *SQLServerDialect) Dialect() gorm.Dialector {
	return sqlserver.Open(d.cfg.DSN)
}

func (d *SQLServerDialect) ConfigureConnection(db *gorm.DB) error {
	return configurePool(db, d.cfg)
}

func configurePool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns == 0 {
		maxOpenConns = 25
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime(cfg))
	return nil
}

func connMaxLifetime(cfg config.DatabaseConfig) time.Duration {
	lifetime := time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second
	if lifetime == 0 {
		lifetime = 5 * time.Minute
	}
	return lifetime
}
