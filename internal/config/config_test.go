package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "3306", Name: "forecast", User: "u", Pass: "p", Charset: "utf8mb4"}
	want := "u:p@tcp(db:3306)/forecast?charset=utf8mb4&parseTime=True&loc=UTC"
	if got := d.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("SUBSTRATE_DRIVER", " Redis ")
	t.Setenv("WORKER_DEDUP_TTL", "not-a-duration")
	t.Setenv("LLM_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Substrate.Driver != "redis" {
		t.Fatalf("Driver = %q, want redis", cfg.Substrate.Driver)
	}
	if cfg.Substrate.Group != "crypto-forecast-schedules" {
		t.Fatalf("Group = %q", cfg.Substrate.Group)
	}
	if cfg.Planning.TimezoneMode != "schedule" {
		t.Fatalf("TimezoneMode = %q, want schedule", cfg.Planning.TimezoneMode)
	}
	if cfg.Worker.DedupTTL != 24*time.Hour {
		t.Fatalf("DedupTTL = %v, want fallback 24h", cfg.Worker.DedupTTL)
	}
	if cfg.Worker.LLMTimeout != 5*time.Second {
		t.Fatalf("LLMTimeout = %v, want 5s", cfg.Worker.LLMTimeout)
	}
	if cfg.Substrate.Concurrency != 8 || cfg.Planning.Workers != 4 {
		t.Fatalf("unexpected pool sizes: substrate=%d planning=%d", cfg.Substrate.Concurrency, cfg.Planning.Workers)
	}
}

func TestSecretValue(t *testing.T) {
	viper.Reset()
	viper.AutomaticEnv()
	t.Setenv("OPENAI_API_KEY", "sk-test")

	if got := SecretValue("OPENAI_API_KEY"); got != "sk-test" {
		t.Fatalf("SecretValue = %q, want sk-test", got)
	}
	if got := SecretValue("  "); got != "" {
		t.Fatalf("SecretValue(blank) = %q, want empty", got)
	}
}
