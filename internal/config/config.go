// Package config provides centralized configuration management with
// environment variable support for secure credential handling.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/regions"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Apify     ApifyConfig
	Cron      CronConfig
	Ingestion IngestionConfig
	Cleanup   CleanupConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string
	Port            int
	TLSCertFile     string
	TLSKeyFile      string
	CORSAllowOrigin string
	RateLimitRPM    int // Requests per minute
}

// ApifyConfig holds scraping provider credentials and actor identifiers
type ApifyConfig struct {
	Token             string
	BaseURL           string
	TrendingActor     string
	PreviewActor      string
	TimeoutSeconds    int
	RequestsPerSecond int
	MaxRetries        int
}

// CronConfig holds the shared secret that guards ingestion endpoints
type CronConfig struct {
	Key string
}

// IngestionConfig holds scheduled refresh settings
type IngestionConfig struct {
	Countries       []string
	Limit           int
	Period          string
	BackfillPreview bool
	BackfillCount   int
	IntervalMinutes int
	ScrapeCovers    bool
}

// CleanupConfig holds cleanup settings
type CleanupConfig struct {
	StaleDays          int // 0 disables pruning
	CleanupIntervalMin int
}

// Load reads configuration from .env, config file and environment variables.
// Environment variables take precedence over config file values.
// Sensitive values (passwords, tokens) should ONLY be set via environment variables in production.
func Load() (*Config, error) {
	// .env is a local development convenience; missing file is fine
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars()

	// Config file is optional if env vars are set
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getStringWithEnvFallback("database.host", "DB_HOST", "localhost"),
			Port:     getIntWithEnvFallback("database.port", "DB_PORT", 5432),
			User:     getStringWithEnvFallback("database.user", "DB_USER", "postgres"),
			Password: getStringWithEnvFallback("database.password", "DB_PASSWORD", ""),
			DBName:   getStringWithEnvFallback("database.dbname", "DB_NAME", "sound_trends"),
			SSLMode:  getStringWithEnvFallback("database.sslmode", "DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Host:            getStringWithEnvFallback("server.host", "SERVER_HOST", "0.0.0.0"),
			Port:            getIntWithEnvFallback("server.port", "SERVER_PORT", 8080),
			TLSCertFile:     getStringWithEnvFallback("server.tls_cert", "TLS_CERT_FILE", ""),
			TLSKeyFile:      getStringWithEnvFallback("server.tls_key", "TLS_KEY_FILE", ""),
			CORSAllowOrigin: getStringWithEnvFallback("server.cors_origin", "CORS_ALLOW_ORIGIN", "*"),
			RateLimitRPM:    getIntWithEnvFallback("server.rate_limit_rpm", "RATE_LIMIT_RPM", 100),
		},
		Apify: ApifyConfig{
			Token:             getStringWithEnvFallback("apify.token", "APIFY_TOKEN", ""),
			BaseURL:           getStringWithEnvFallback("apify.base_url", "APIFY_BASE_URL", "https://api.apify.com/v2"),
			TrendingActor:     getStringWithEnvFallback("apify.trending_actor", "APIFY_ALIEN_ACTOR_ID", "alien_force/tiktok-trending-sounds-tracker"),
			PreviewActor:      getStringWithEnvFallback("apify.preview_actor", "APIFY_NOVI_ACTOR_ID", "novi/tiktok-sound-api"),
			TimeoutSeconds:    getIntWithEnvFallback("apify.timeout_seconds", "APIFY_TIMEOUT_SECONDS", 330),
			RequestsPerSecond: getIntWithEnvFallback("apify.requests_per_second", "APIFY_RPS", 2),
			MaxRetries:        getIntWithEnvFallback("apify.max_retries", "APIFY_MAX_RETRIES", 2),
		},
		Cron: CronConfig{
			Key: getStringWithEnvFallback("cron.key", "CRON_KEY", ""),
		},
		Ingestion: IngestionConfig{
			Countries:       SplitCountries(getStringWithEnvFallback("ingestion.countries", "INGEST_COUNTRIES", strings.Join(regions.DefaultCountries(), ", "))),
			Limit:           getIntWithEnvFallback("ingestion.limit", "INGEST_LIMIT", 50),
			Period:          getStringWithEnvFallback("ingestion.period", "INGEST_PERIOD", "1"),
			BackfillPreview: viper.GetBool("ingestion.backfill_preview"),
			BackfillCount:   getIntWithEnvFallback("ingestion.backfill_count", "INGEST_BACKFILL_COUNT", 10),
			IntervalMinutes: getIntWithEnvFallback("ingestion.interval_minutes", "INGEST_INTERVAL_MINUTES", 60),
			ScrapeCovers:    viper.GetBool("ingestion.scrape_covers"),
		},
		Cleanup: CleanupConfig{
			StaleDays:          getIntWithEnvFallback("cleanup.stale_days", "CLEANUP_STALE_DAYS", 0),
			CleanupIntervalMin: getIntWithEnvFallback("cleanup.interval_minutes", "CLEANUP_INTERVAL_MIN", 1440),
		},
	}

	return cfg, nil
}

// DatabaseConnString returns a PostgreSQL connection string.
// This method intentionally does NOT log the password.
func (c *DatabaseConfig) DatabaseConnString() string {
	if c.Password == "" {
		return fmt.Sprintf(
			"host=%s port=%d user=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.DBName, c.SSLMode,
		)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// DatabaseConnStringSafe returns a connection string with password redacted for logging
func (c *DatabaseConfig) DatabaseConnStringSafe() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.DBName, c.SSLMode,
	)
}

// DatabaseURL returns the connection as a postgres:// URL, the form golang-migrate expects.
func (c *DatabaseConfig) DatabaseURL() string {
	userInfo := c.User
	if c.Password != "" {
		userInfo = c.User + ":" + c.Password
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s", userInfo, c.Host, c.Port, c.DBName, c.SSLMode)
}

// IsTLSEnabled returns true if TLS certificate and key are configured
func (c *ServerConfig) IsTLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Timeout returns the per-call provider timeout
func (c *ApifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ClientConfig returns the settings for the provider client
func (c *ApifyConfig) ClientConfig() apify.Config {
	return apify.Config{
		BaseURL:           c.BaseURL,
		Token:             c.Token,
		TrendingActor:     c.TrendingActor,
		PreviewActor:      c.PreviewActor,
		Timeout:           c.Timeout(),
		RequestsPerSecond: c.RequestsPerSecond,
		MaxRetries:        c.MaxRetries,
	}
}

// SplitCountries parses a comma-separated country list, dropping blanks.
func SplitCountries(csv string) []string {
	var countries []string
	for _, part := range strings.Split(csv, ",") {
		if name := strings.TrimSpace(part); name != "" {
			countries = append(countries, name)
		}
	}
	return countries
}

// bindEnvVars explicitly binds environment variables to viper keys
func bindEnvVars() {
	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")
	viper.BindEnv("database.sslmode", "DB_SSLMODE")

	// Server
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.tls_cert", "TLS_CERT_FILE")
	viper.BindEnv("server.tls_key", "TLS_KEY_FILE")
	viper.BindEnv("server.cors_origin", "CORS_ALLOW_ORIGIN")
	viper.BindEnv("server.rate_limit_rpm", "RATE_LIMIT_RPM")

	// Provider
	viper.BindEnv("apify.token", "APIFY_TOKEN")
	viper.BindEnv("apify.trending_actor", "APIFY_ALIEN_ACTOR_ID")
	viper.BindEnv("apify.preview_actor", "APIFY_NOVI_ACTOR_ID")

	// Ingestion
	viper.BindEnv("cron.key", "CRON_KEY")
	viper.BindEnv("ingestion.backfill_preview", "INGEST_BACKFILL_PREVIEW")
	viper.BindEnv("ingestion.scrape_covers", "INGEST_SCRAPE_COVERS")
}

// getStringWithEnvFallback gets a string value, preferring env var over config file
func getStringWithEnvFallback(viperKey, envKey, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if val := viper.GetString(viperKey); val != "" {
		return val
	}
	return defaultVal
}

// getIntWithEnvFallback gets an int value, preferring env var over config file
func getIntWithEnvFallback(viperKey, envKey string, defaultVal int) int {
	if val := os.Getenv(envKey); val != "" {
		var intVal int
		fmt.Sscanf(val, "%d", &intVal)
		if intVal != 0 {
			return intVal
		}
	}
	if val := viper.GetInt(viperKey); val != 0 {
		return val
	}
	return defaultVal
}
