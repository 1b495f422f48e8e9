package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/config"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ingest"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/preview"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ranking"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/scraper"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/server"
)

func main() {
	// Load configuration (supports env vars)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Cron.Key == "" {
		log.Printf("[WARN] CRON_KEY is not set; /sounds/refresh will reject every request")
	}
	if cfg.Apify.Token == "" {
		log.Printf("[WARN] APIFY_TOKEN is not set; provider calls will fail")
	}

	// Initialize database (log safe connection string without password)
	log.Printf("Connecting to database: %s", cfg.Database.DatabaseConnStringSafe())
	db, err := database.NewDB(cfg.Database.DatabaseConnString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	client := apify.NewClient(cfg.Apify.ClientConfig())
	defer client.Close()

	resolver := preview.NewResolver(client, db)
	refresher := ingest.NewRefresher(client, db, resolver)
	if cfg.Ingestion.ScrapeCovers {
		refresher.WithCoverScraper(scraper.NewScraper())
	}

	srv := server.New(cfg, server.Deps{
		Sounds:    db,
		Ranker:    ranking.NewAggregator(db),
		Refresher: refresher,
		Previews:  resolver,
	})
	defer srv.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		var err error
		// Start server with or without TLS
		if cfg.Server.IsTLSEnabled() {
			log.Printf("Starting HTTPS server on %s", addr)
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			log.Printf("Starting HTTP server on %s (TLS not configured)", addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[INFO] Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] Graceful shutdown failed: %v", err)
	}
}
