package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	API       APIConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Substrate SubstrateConfig
	Planning  PlanningConfig
	Worker    WorkerConfig
	Notify    NotifyConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type APIConfig struct {
	Key string // Token header value required on /api; empty disables auth
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// SubstrateConfig selects and configures the one-time trigger backend.
type SubstrateConfig struct {
	Driver      string // "memory", "redis", "eventbridge"
	Group       string
	TargetARN   string
	RoleARN     string
	TargetURL   string // redis driver: worker endpoint that due triggers are POSTed to
	Endpoint    string // eventbridge driver: endpoint override (LocalStack)
	Region      string
	AccessKey   string
	SecretKey   string
	Concurrency int
	RatePerSec  float64
	SweepCron   string
	Timeout     time.Duration
}

type PlanningConfig struct {
	Cron         string
	NamePrefix   string
	Workers      int
	TimezoneMode string // "schedule" or "utc"
}

type WorkerConfig struct {
	DedupTTL   time.Duration
	LLMTimeout time.Duration
}

type NotifyConfig struct {
	TelegramToken  string
	TelegramChatID int64
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()
	setDefaults()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
		Database: databaseFromEnv(),
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Substrate: SubstrateConfig{
			Driver:      strings.ToLower(strings.TrimSpace(viper.GetString("SUBSTRATE_DRIVER"))),
			Group:       viper.GetString("SUBSTRATE_GROUP"),
			TargetARN:   viper.GetString("SUBSTRATE_TARGET_ARN"),
			RoleARN:     viper.GetString("SUBSTRATE_ROLE_ARN"),
			TargetURL:   viper.GetString("SUBSTRATE_TARGET_URL"),
			Endpoint:    viper.GetString("SUBSTRATE_ENDPOINT"),
			Region:      viper.GetString("SUBSTRATE_REGION"),
			AccessKey:   viper.GetString("SUBSTRATE_ACCESS_KEY"),
			SecretKey:   viper.GetString("SUBSTRATE_SECRET_KEY"),
			Concurrency: viper.GetInt("SUBSTRATE_CONCURRENCY"),
			RatePerSec:  viper.GetFloat64("SUBSTRATE_RATE_PER_SEC"),
			SweepCron:   viper.GetString("SUBSTRATE_SWEEP_CRON"),
			Timeout:     durationOr("SUBSTRATE_TIMEOUT", 15*time.Second),
		},
		Planning: PlanningConfig{
			Cron:         viper.GetString("PLANNING_CRON"),
			NamePrefix:   viper.GetString("PLANNING_NAME_PREFIX"),
			Workers:      viper.GetInt("PLANNING_WORKERS"),
			TimezoneMode: strings.ToLower(strings.TrimSpace(viper.GetString("PLANNING_TIMEZONE_MODE"))),
		},
		Worker: WorkerConfig{
			DedupTTL:   durationOr("WORKER_DEDUP_TTL", 24*time.Hour),
			LLMTimeout: durationOr("LLM_TIMEOUT", 60*time.Second),
		},
		Notify: NotifyConfig{
			TelegramToken:  viper.GetString("NOTIFY_TELEGRAM_TOKEN"),
			TelegramChatID: viper.GetInt64("NOTIFY_TELEGRAM_CHAT_ID"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.API.Key == "" && cfg.Server.Env == "production" {
		log.Println("WARNING: API_KEY is not set, /api is unauthenticated")
	}
	if cfg.Substrate.Driver == "eventbridge" && cfg.Substrate.TargetARN == "" {
		log.Println("WARNING: SUBSTRATE_TARGET_ARN is not set")
	}
	if cfg.Substrate.Driver == "redis" && cfg.Substrate.TargetURL == "" {
		log.Println("WARNING: SUBSTRATE_TARGET_URL is not set, due triggers will not be delivered")
	}

	return cfg, nil
}

// LoadDatabaseOnly reads just the database settings, for schema bootstrap.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	_ = godotenv.Load()
	viper.AutomaticEnv()
	setDefaults()
	db := databaseFromEnv()
	return &db, nil
}

func setDefaults() {
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SUBSTRATE_DRIVER", "memory")
	viper.SetDefault("SUBSTRATE_GROUP", "crypto-forecast-schedules")
	viper.SetDefault("SUBSTRATE_REGION", "us-east-1")
	viper.SetDefault("SUBSTRATE_CONCURRENCY", 8)
	viper.SetDefault("SUBSTRATE_RATE_PER_SEC", 10)
	viper.SetDefault("SUBSTRATE_SWEEP_CRON", "*/30 * * * * *")
	viper.SetDefault("PLANNING_CRON", "0 30 0 * * *")
	viper.SetDefault("PLANNING_NAME_PREFIX", "crypto-forecast")
	viper.SetDefault("PLANNING_WORKERS", 4)
	viper.SetDefault("PLANNING_TIMEZONE_MODE", "schedule")
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:    viper.GetString("DB_HOST"),
		Port:    viper.GetString("DB_PORT"),
		Name:    viper.GetString("DB_NAME"),
		User:    viper.GetString("DB_USER"),
		Pass:    viper.GetString("DB_PASS"),
		Charset: viper.GetString("DB_CHARSET"),
	}
}

func durationOr(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SecretValue resolves an LLM api_key_secret reference to its value.
// The reference is an environment variable name.
func SecretValue(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return viper.GetString(name)
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=UTC"
}
