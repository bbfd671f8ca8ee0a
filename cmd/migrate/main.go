package main

import (
	"bank_system/internal/config" // Custom import path (Config)
	"bank_system/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus"
)

// Main entry point for migration
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	if cfg.StoreBackend != config.BackendSQL {
		logrus.Fatalf("nothing to migrate for STORE_BACKEND=%s", cfg.StoreBackend)
	}

	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}
}
