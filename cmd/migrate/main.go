package main

// Run database migrations and seed the module catalog:
//   go run ./cmd/migrate

import (
	"context"
	"log"
	"os"
	"strings"

	"studio-backend/internal/catalog"
	"studio-backend/internal/shared/config"
	"studio-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}

	if strings.EqualFold(os.Getenv("SKIP_CATALOG_SEED"), "true") {
		return
	}
	if err := catalog.SeedDefaults(ctx, &catalog.PGRepo{DB: sqlDB}); err != nil {
		log.Printf("failed to seed catalog: %v", err)
		os.Exit(1)
	}
}
