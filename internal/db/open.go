package db

import (
	"fmt"

	"bank_system/internal/config" // Custom package for configuration

	"gorm.io/driver/mysql"    // MySQL driver for GORM
	"gorm.io/driver/postgres" // PostgreSQL driver for GORM
	"gorm.io/gorm"            // GORM ORM library
	"gorm.io/gorm/logger"
)

// Open connects to the database selected by cfg.DBDriver. SQLite stores
// decimal columns as REAL, so it is only opened by tests through OpenDialector.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.DSN())
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
	return OpenDialector(dialector, cfg.IsProd)
}

// OpenDialector opens a gorm connection with the settings every backend shares
func OpenDialector(dialector gorm.Dialector, quiet bool) (*gorm.DB, error) {
	level := logger.Warn // Surface slow queries and errors during development
	if quiet {
		level = logger.Error
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true, // Map driver errors to gorm.ErrDuplicatedKey and friends
		Logger:         logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return db, nil
}
