// Package storage selects the Interaction ledger implementation from configuration.
package storage

import (
	"fmt"

	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/pkg/config"
	"github.com/tjfontaine/automation-orchestrator/internal/storage/memory"
	"github.com/tjfontaine/automation-orchestrator/internal/storage/sqldb"
)

// New builds the store named by cfg.Type: memory, sqlite or postgres.
func New(cfg config.StorageConfig) (ports.InteractionStore, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil
	case "sqlite", "postgres":
		driver := cfg.Database.Driver
		if driver == "" {
			driver = cfg.Type
		}
		dsn := cfg.Database.DSN
		if dsn == "" && driver == "sqlite" {
			dsn = "orchestrator.db"
		}
		store, err := sqldb.New(sqldb.Config{Driver: driver, DSN: dsn})
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Type, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
