package main

import (
	"log"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/config"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
)

func main() {
	// Load configuration (supports env vars)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database (log safe connection string without password)
	log.Printf("Connecting to database: %s", cfg.Database.DatabaseConnStringSafe())
	db, err := database.NewDB(cfg.Database.DatabaseConnString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Running migrations...")

	version, changed, err := db.Migrate()
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if changed {
		log.Printf("Migrations completed successfully, schema at version %d", version)
	} else {
		log.Printf("Schema already up to date (version %d)", version)
	}
}
