package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/config"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ingest"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/maintenance"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/preview"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/scraper"
)

// Poller refreshes trending snapshots on a schedule
type Poller struct {
	refresher *ingest.Refresher
	config    *config.Config
}

func main() {
	// Load configuration (supports env vars)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	log.Printf("Connecting to database: %s", cfg.Database.DatabaseConnStringSafe())
	db, err := database.NewDB(cfg.Database.DatabaseConnString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	client := apify.NewClient(cfg.Apify.ClientConfig())
	defer client.Close()

	refresher := ingest.NewRefresher(client, db, preview.NewResolver(client, db))
	if cfg.Ingestion.ScrapeCovers {
		refresher.WithCoverScraper(scraper.NewScraper())
	}

	poller := &Poller{refresher: refresher, config: cfg}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	maintenance.StartCleanupTicker(ctx, db, maintenance.Config{
		StaleDays:          cfg.Cleanup.StaleDays,
		CleanupIntervalMin: cfg.Cleanup.CleanupIntervalMin,
	})

	interval := time.Duration(cfg.Ingestion.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	log.Printf("Starting poller for %d countries every %v", len(cfg.Ingestion.Countries), interval)

	// Run initial poll
	poller.Poll(ctx)

	// Run on schedule
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[INFO] Shutting down poller")
			return
		case <-ticker.C:
			poller.Poll(ctx)
		}
	}
}

// Poll runs one refresh over the configured countries
func (p *Poller) Poll(ctx context.Context) {
	log.Println("Starting poll...")

	report := p.refresher.Run(ctx, ingest.Options{
		Countries:       p.config.Ingestion.Countries,
		Limit:           p.config.Ingestion.Limit,
		Period:          p.config.Ingestion.Period,
		BackfillPreview: p.config.Ingestion.BackfillPreview,
		BackfillCount:   p.config.Ingestion.BackfillCount,
		ScrapeCovers:    p.config.Ingestion.ScrapeCovers,
	})

	failures := report.Failures()
	log.Printf("Poll %s complete in %v: %d sounds upserted, %d/%d countries failed",
		report.RunID, report.FinishedAt.Sub(report.StartedAt), report.Upserted(), len(failures), len(report.Countries))
}
