package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"surveyplanner/internal/bootstrap"
	"surveyplanner/internal/config"
	cronpkg "surveyplanner/internal/cron"
	"surveyplanner/internal/middleware"
	"surveyplanner/internal/notify"
	"surveyplanner/internal/pkg/httpclient"
	"surveyplanner/internal/planning"
	"surveyplanner/internal/recommender"
	"surveyplanner/internal/repository"
	"surveyplanner/internal/router"
	"surveyplanner/internal/trigger"
	"surveyplanner/internal/trigger/eventbridge"
	"surveyplanner/internal/trigger/memory"
	"surveyplanner/internal/trigger/redisstore"
	"surveyplanner/internal/worker"
)

func main() {
	// --- Logger ---
	logger, err := newLogger(os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Redis (self-hosted substrate and delivery dedup) ---
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Pass,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	// --- Trigger substrate ---
	sub, sweeper, err := newSubstrate(ctx, cfg, rdb, logger)
	if err != nil {
		logger.Fatal("Failed to create trigger substrate", zap.Error(err))
	}
	poolOpts := trigger.Options{
		Concurrency: cfg.Substrate.Concurrency,
		RatePerSec:  cfg.Substrate.RatePerSec,
		CallTimeout: cfg.Substrate.Timeout,
	}
	cleaner := trigger.NewCleaner(sub, poolOpts, logger)

	if hasArg("--delete-group") {
		group := argValue("--group", cfg.Substrate.Group)
		report := cleaner.DeleteGroup(ctx, group, hasArg("--force"))
		printJSON(report)
		if report.Status != trigger.StatusSuccess {
			os.Exit(1)
		}
		return
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Planner ---
	reconciler := trigger.NewReconciler(sub, poolOpts)
	planner := planning.NewPlanner(
		repository.NewPlanningSource(db),
		planning.NewGenerator(cfg.Planning.NamePrefix, cfg.Planning.TimezoneMode == "utc", logger),
		trigger.NewDispatcher(sub, poolOpts, logger),
		reconciler,
		planning.Config{Group: cfg.Substrate.Group, Workers: cfg.Planning.Workers},
		logger,
	)
	notifier := newNotifier(cfg.Notify, logger)
	planner.SetNotifier(notifier)

	if hasArg("--plan-once") {
		opts := planning.RunOptions{Repair: hasArg("--repair"), Group: argValue("--group", "")}
		if raw := argValue("--base-date", ""); raw != "" {
			base, err := planning.ParseDate(raw)
			if err != nil {
				logger.Fatal("Invalid --base-date", zap.String("value", raw), zap.Error(err))
			}
			opts.BaseDate = base
		}
		report := planner.Run(ctx, opts)
		notifier.Wait()
		printJSON(report)
		if report.Status == trigger.StatusError {
			os.Exit(1)
		}
		return
	}

	// --- Worker ---
	queries := repository.NewQueryRepository(db)
	forecastWorker := worker.NewHandler(queries, recommender.New, config.SecretValue, cfg.Worker.LLMTimeout, logger)

	// --- Delivery dedup (Redis with in-memory fallback) ---
	var dedupClient redis.UniversalClient
	if rdb != nil {
		dedupClient = rdb
	}
	deduper, dedupErr := middleware.NewTriggerDeduper(ctx, dedupClient, cfg.Worker.DedupTTL)
	if dedupErr != nil {
		logger.Warn("Redis unavailable for delivery dedup, using in-memory fallback", zap.Error(dedupErr))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Routes ---
	router.Setup(e, db, router.Services{
		Planner:   planner,
		Inspector: reconciler,
		Cleaner:   cleaner,
		Worker:    forecastWorker,
	}, logger, cfg.API.Key, deduper)

	// --- Cron Scheduler ---
	jobs := cronpkg.Jobs{PlanningSpec: cfg.Planning.Cron, Planner: planner}
	if sweeper != nil {
		jobs.SweepSpec = cfg.Substrate.SweepCron
		jobs.Sweeper = sweeper
	}
	scheduler := cronpkg.New(jobs, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start cron scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting survey planner", zap.String("addr", addr),
			zap.String("substrate", cfg.Substrate.Driver), zap.String("group", cfg.Substrate.Group))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Stop cron
	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	notifier.Wait()

	logger.Info("Server exited")
}

func newLogger(env string) (*zap.Logger, error) {
	if strings.EqualFold(strings.TrimSpace(env), "development") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newSubstrate builds the configured trigger backend. The sweeper is non-nil
// only for the redis driver, which fires triggers itself.
func newSubstrate(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zap.Logger) (trigger.Substrate, *redisstore.Sweeper, error) {
	sc := cfg.Substrate
	switch sc.Driver {
	case "", "memory":
		logger.Warn("Using in-memory trigger substrate; triggers are not persisted or fired")
		return memory.New(), nil, nil
	case "redis":
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis substrate requires REDIS_ADDR")
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		store := redisstore.New(rdb, redisstore.DefaultPrefix)
		client := httpclient.New().WithTimeout(cfg.Worker.LLMTimeout + 30*time.Second).WithRetries(0)
		if cfg.API.Key != "" {
			client.WithHeader("Token", cfg.API.Key)
		}
		return store, redisstore.NewSweeper(store, client, sc.TargetURL, logger), nil
	case "eventbridge":
		api, err := eventbridge.NewClient(ctx, eventbridge.ClientConfig{
			Region:    sc.Region,
			Endpoint:  sc.Endpoint,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return eventbridge.New(api, sc.TargetARN, sc.RoleARN), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown SUBSTRATE_DRIVER %q", sc.Driver)
}

// runNotifier is a planning.Notifier that sends in the background.
type runNotifier interface {
	planning.Notifier
	Wait()
}

func newNotifier(cfg config.NotifyConfig, logger *zap.Logger) runNotifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		return notify.Nop{}
	}
	n, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.Warn("Telegram notifier disabled", zap.Error(err))
		return notify.Nop{}
	}
	return n
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

// argValue returns the value of --name=value, or fallback.
func argValue(name, fallback string) string {
	prefix := name + "="
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, prefix) {
			return strings.TrimPrefix(arg, prefix)
		}
	}
	return fallback
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func runDBBootstrap(logger *zap.Logger) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg, logger)
	if err != nil {
		return err
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		return err
	}
	logger.Info("Schema migration and default seed completed")
	return nil
}
