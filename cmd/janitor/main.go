package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/config"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/maintenance"
)

func main() {
	staleDays := flag.Int("stale-days", 0, "Delete sounds not refreshed for this many days (default: cleanup.stale_days)")
	dryRun := flag.Bool("dry-run", false, "Report what would be deleted without deleting")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	days := cfg.Cleanup.StaleDays
	if *staleDays > 0 {
		days = *staleDays
	}
	if days <= 0 {
		log.Printf("[INFO] No retention configured (set -stale-days or CLEANUP_STALE_DAYS); nothing to do")
		return
	}

	// Initialize database
	db, err := database.NewDB(cfg.Database.DatabaseConnString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	cutoff := now.UTC().AddDate(0, 0, -days)

	log.Printf("[INFO] Starting database cleanup...")
	log.Printf("[INFO] Cleaning up sounds not refreshed in %d days (before %s)...", days, cutoff.Format("2006-01-02"))

	count, err := db.CountStaleSounds(ctx, cutoff)
	if err != nil {
		log.Fatalf("Failed to count stale sounds: %v", err)
	}
	log.Printf("[INFO] Found %d sounds to delete", count)

	if count == 0 {
		log.Printf("[INFO] No stale sounds to clean up")
		return
	}

	if *dryRun {
		log.Printf("[DRY RUN] Would delete %d sounds", count)
		return
	}

	if _, err := maintenance.PruneStaleSounds(ctx, db, maintenance.Config{StaleDays: days}, now); err != nil {
		log.Fatalf("Failed to clean up sounds: %v", err)
	}

	log.Printf("[INFO] Database cleanup complete!")
}
