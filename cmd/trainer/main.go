// Command trainer fits the prediction ensemble on historical seasons and
// registers the result as a new model version. Without -once it stays up and
// retrains on TRAIN_SCHEDULE.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/statstack/predictions-api/internal/config"
	"github.com/statstack/predictions-api/internal/logic"
	"github.com/statstack/predictions-api/internal/training"
)

const runTimeout = 2 * time.Hour

func main() {
	seasonsFlag := flag.String("seasons", "", "Seasons to train on, e.g. 2019-2023 or 2021,2022 (overrides config)")
	configPath := flag.String("config", "", "Training YAML (defaults to TRAINING_CONFIG)")
	activate := flag.Bool("activate", false, "Activate the new version after a successful run")
	once := flag.Bool("once", false, "Train once and exit instead of following the schedule")
	list := flag.Bool("list", false, "List registered model versions and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if *configPath != "" {
		cfg.TrainingConfigPath = *configPath
	}
	trainCfg, err := config.LoadTraining(cfg.TrainingConfigPath)
	if err != nil {
		sugar.Fatalw("Failed to load training config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		sugar.Fatalw("Failed to connect to PostgreSQL", "error", err)
	}
	defer pg.Close()
	registry := logic.NewModelRegistry(pg)

	if *list {
		versions, err := registry.List(ctx)
		if err != nil {
			sugar.Fatalw("Failed to list model versions", "error", err)
		}
		if len(versions) == 0 {
			fmt.Println("No model versions registered.")
		}
		for _, v := range versions {
			fmt.Println(v.String())
		}
		return
	}

	seasons := trainCfg.Seasons
	if *seasonsFlag != "" {
		if seasons, err = config.ParseSeasons(*seasonsFlag); err != nil {
			sugar.Fatalw("Invalid -seasons", "error", err)
		}
	}
	if len(seasons) == 0 {
		seasons = cfg.TrainSeasons
	}
	if len(seasons) == 0 {
		sugar.Fatal("No training seasons: pass -seasons, set seasons in the training config or TRAIN_SEASONS")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		sugar.Fatalw("Invalid REDIS_URL", "error", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	trainer := training.NewTrainer(training.Config{
		Source:        logic.NewHistoricalDataSource(pg),
		Registry:      registry,
		Cache:         logic.NewRedisCache(rdb, logger),
		Notifier:      logic.NewActivationNotifier(rdb),
		Logger:        logger,
		ModelDir:      cfg.ModelDir,
		Params:        trainCfg.Hyperparameters,
		FeatureWindow: cfg.FeatureWindow,
	})

	train := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		res, err := trainer.Run(ctx, seasons, *activate)
		if err != nil {
			return err
		}
		sugar.Infow("Training run finished", "model", res.Version.String(), "skipped", res.Skipped, "activated", res.Activated)
		return nil
	}

	if *once {
		if err := train(ctx); err != nil {
			sugar.Fatalw("Training failed", "error", err)
		}
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(cfg.TrainSchedule, func() {
		if err := train(ctx); err != nil {
			sugar.Errorw("Scheduled training failed", "error", err)
		}
	}); err != nil {
		sugar.Fatalw("Invalid TRAIN_SCHEDULE", "schedule", cfg.TrainSchedule, "error", err)
	}

	c.Start()
	sugar.Infow("Training scheduler started", "schedule", cfg.TrainSchedule, "seasons", seasons, "activate", *activate)

	<-ctx.Done()
	sugar.Info("Shutting down...")
	<-c.Stop().Done()
}
