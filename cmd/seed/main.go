package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"msgtree/internal/config"
	"msgtree/internal/repository"
	"msgtree/internal/seed"
)

// schemaDropper is implemented by stores that can remove their tables
type schemaDropper interface {
	DropSchema(ctx context.Context) error
}

func main() {
	// Parse command-line flags
	fixturePath := flag.String("fixture", "", "YAML fixture to load (defaults to the bundled sample)")
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (postgres only)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed messages")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("🚫 BLOCKED: Cannot run --drop-tables in production environment")
	}

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	log.Printf("🌱 Seeding %s store (environment: %s, prefix: %s)", cfg.StoreDriver, cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	if *dropTables {
		dropper, ok := store.Messages().(schemaDropper)
		if !ok {
			log.Fatalf("--drop-tables is not supported by the %s store", cfg.StoreDriver)
		}
		log.Println("🗑️  Dropping all tables...")
		if err := dropper.DropSchema(ctx); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		if err := store.Messages().EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to recreate schema: %v", err)
		}
		log.Println("✅ Tables recreated")
	}

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	var fx *seed.Fixture
	if *fixturePath != "" {
		fx, err = seed.LoadFile(*fixturePath)
	} else {
		fx, err = seed.Sample()
	}
	if err != nil {
		log.Fatalf("Failed to load fixture: %v", err)
	}

	res, err := seed.NewSeeder(store.Messages(), store.Transactions(), logger).Apply(ctx, fx)
	if err != nil {
		log.Fatalf("Failed to seed: %v", err)
	}

	for _, id := range res.TreeIDs {
		log.Printf("✅ Created tree %s", id)
	}
	log.Printf("🎉 Seeding complete! %d users, %d messages", res.Users, res.Messages)
}
