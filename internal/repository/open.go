// Package repository selects and opens the configured message store.
package repository

import (
	"context"
	"fmt"
	"log/slog"

	"msgtree/internal/config"
	"msgtree/internal/domain/repositories"
	"msgtree/internal/repository/pebble"
	"msgtree/internal/repository/postgres"
	"msgtree/internal/repository/sqlite"
)

// Open opens the store named by cfg.StoreDriver and ensures its schema
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.Store, error) {
	var (
		store repositories.Store
		err   error
	)

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err = postgres.Open(ctx, cfg.DatabaseURL, cfg.TablePrefix, logger)
	case config.DriverSQLite:
		store, err = sqlite.Open(ctx, cfg.SQLitePath, logger)
	case config.DriverPebble:
		store, err = pebble.Open(cfg.PebblePath, pebble.Options{}, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	if err := store.Messages().EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure %s schema: %w", cfg.StoreDriver, err)
	}

	logger.Info("store ready", "driver", cfg.StoreDriver, "table_prefix", cfg.TablePrefix)
	return store, nil
}
