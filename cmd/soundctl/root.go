package main

import (
	"github.com/spf13/cobra"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/config"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
)

var rootCmd = &cobra.Command{
	Use:     "soundctl",
	Short:   "soundctl - operate the trending sound store",
	Long:    "soundctl refreshes trending snapshots, prints period rankings and resolves sound previews.",
	Version: version,
}

func init() {
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newRankCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newPreviewCmd())
}

// env is what every subcommand needs: config, database and provider client
type env struct {
	cfg    *config.Config
	db     *database.DB
	client *apify.Client
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.DatabaseConnString())
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		db:     db,
		client: apify.NewClient(cfg.Apify.ClientConfig()),
	}, nil
}

func (e *env) Close() {
	e.client.Close()
	_ = e.db.Close()
}
