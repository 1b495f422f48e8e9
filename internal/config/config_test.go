package config

import (
	"reflect"
	"testing"
	"time"
)

func TestSplitCountries(t *testing.T) {
	got := SplitCountries(" Spain, ,Mexico ,United Kingdom,")
	want := []string{"Spain", "Mexico", "United Kingdom"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitCountries = %#v, want %#v", got, want)
	}

	if got := SplitCountries(""); len(got) != 0 {
		t.Fatalf("expected no countries for empty input, got %#v", got)
	}
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("CRON_KEY", "s3cret")
	t.Setenv("APIFY_TIMEOUT_SECONDS", "30")
	t.Setenv("INGEST_COUNTRIES", "Spain,Japan")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Cron.Key != "s3cret" {
		t.Errorf("cron key = %q", cfg.Cron.Key)
	}
	if cfg.Apify.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Apify.Timeout())
	}
	if !reflect.DeepEqual(cfg.Ingestion.Countries, []string{"Spain", "Japan"}) {
		t.Errorf("countries = %#v", cfg.Ingestion.Countries)
	}
	if cfg.Ingestion.Limit != 50 || cfg.Ingestion.Period != "1" || cfg.Ingestion.BackfillCount != 10 {
		t.Errorf("unexpected ingestion defaults: %+v", cfg.Ingestion)
	}
	if cfg.Apify.TrendingActor == "" || cfg.Apify.PreviewActor == "" {
		t.Errorf("actor defaults missing: %+v", cfg.Apify)
	}

	client := cfg.Apify.ClientConfig()
	if client.Timeout != 30*time.Second || client.TrendingActor != cfg.Apify.TrendingActor {
		t.Errorf("unexpected client config: %+v", client)
	}
}

func TestDatabaseStrings(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "pw", DBName: "sounds", SSLMode: "disable"}

	if got := c.DatabaseConnStringSafe(); got != "host=db port=5432 user=u dbname=sounds sslmode=disable" {
		t.Errorf("safe conn string leaked or changed: %q", got)
	}
	if got := c.DatabaseURL(); got != "postgres://u:pw@db:5432/sounds?sslmode=disable" {
		t.Errorf("DatabaseURL = %q", got)
	}
}
