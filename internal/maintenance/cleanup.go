// Package maintenance prunes latest-state rows that stopped trending.
// Snapshot history is never touched.
package maintenance

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Config holds cleanup configuration
type Config struct {
	StaleDays          int // Delete latest-state rows not refreshed for this long; 0 disables
	CleanupIntervalMin int // How often to run periodic cleanup
}

// Pruner deletes stale latest-state rows
type Pruner interface {
	DeleteStaleSounds(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneStaleSounds removes sounds not refreshed for config.StaleDays.
// Returns the number of rows deleted.
func PruneStaleSounds(ctx context.Context, db Pruner, config Config, now time.Time) (int64, error) {
	if config.StaleDays <= 0 {
		return 0, nil
	}

	startTime := time.Now()
	cutoff := now.UTC().AddDate(0, 0, -config.StaleDays)

	deleted, err := db.DeleteStaleSounds(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale sounds: %w", err)
	}

	log.Printf("[CLEANUP] Deleted %d sounds not refreshed since %s (%dd) in %v",
		deleted, cutoff.Format(time.RFC3339), config.StaleDays, time.Since(startTime))
	return deleted, nil
}

// StartCleanupTicker runs PruneStaleSounds in the background until ctx is done
func StartCleanupTicker(ctx context.Context, db Pruner, config Config) {
	if config.StaleDays <= 0 || config.CleanupIntervalMin <= 0 {
		log.Println("[CLEANUP] Periodic cleanup disabled")
		return
	}

	interval := time.Duration(config.CleanupIntervalMin) * time.Minute
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		log.Printf("[CLEANUP] Started periodic cleanup (interval: %v, stale after %dd)", interval, config.StaleDays)
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				if _, err := PruneStaleSounds(ctx, db, config, t); err != nil {
					log.Printf("[CLEANUP] Error: %v", err)
				}
			}
		}
	}()
}
