package main

import (
	"context"
	"fmt"

	"github.com/lattice/lattice/internal/config"
	"github.com/lattice/lattice/internal/store/sqlstore"
)

// openRepo loads the process configuration and connects to the configured
// backend, shared by every CLI verb that needs direct repository access
// outside of the running server (spec DOMAIN STACK: CLI verbs operate
// IngestionService/IndexMaintenanceService without requiring the HTTP API).
func openRepo(ctx context.Context) (*sqlstore.Repository, config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, cfg, err
	}
	repo, err := sqlstore.Open(ctx, sqlstore.Backend(cfg.Backend), cfg.DSN)
	if err != nil {
		return nil, cfg, fmt.Errorf("opening backend: %w", err)
	}
	return repo, cfg, nil
}
