package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"msgtree/internal/config"
	"msgtree/internal/domain/models"
)

func TestOpenEmbeddedDrivers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	for _, driver := range []string{config.DriverSQLite, config.DriverPebble} {
		t.Run(driver, func(t *testing.T) {
			cfg := &config.Config{
				StoreDriver: driver,
				SQLitePath:  filepath.Join(dir, "open.db"),
				PebblePath:  filepath.Join(dir, "open-pebble"),
			}
			store, err := Open(context.Background(), cfg, logger)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer store.Close()

			msgs, err := store.Messages().QueryMessages(context.Background(), &models.MessageQuery{Limit: 10})
			if err != nil {
				t.Fatalf("QueryMessages() error = %v", err)
			}
			if len(msgs) != 0 {
				t.Errorf("fresh store returned %d messages", len(msgs))
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := Open(context.Background(), &config.Config{StoreDriver: "mongo"}, logger); err == nil {
		t.Fatal("Open() error = nil for unknown driver")
	}
}
