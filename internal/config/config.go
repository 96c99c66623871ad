package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/statstack/predictions-api/internal/ml"
)

type Config struct {
	// Server
	Port int
	Env  string

	// CORS
	AllowedOrigins []string

	// Database URLs. ClickHouse is optional and only backs the audit log.
	PostgresURL   string
	ClickHouseURL string
	RedisURL      string

	// Audit worker pool
	WorkerCount   int
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration

	// Predictions
	ModelDir           string
	PredictionCacheTTL time.Duration
	FeatureWindow      int
	WeekConcurrency    int

	// Auth: hex SHA-256 of the admin token. Empty disables admin routes.
	AdminTokenHash string

	// Training
	TrainingConfigPath string
	TrainSchedule      string
	TrainSeasons       []int

	// Rate limiting
	RateLimitPerSecond int
	RateLimitBurst     int
}

const DefaultTrainSchedule = "CRON_TZ=America/New_York 0 3 * * 2"

// Load reads configuration from the environment, after merging an optional
// .env file from the working directory.
// It returns an error if critical configuration is missing.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Env:  getEnv("ENV", "development"),

		ClickHouseURL: getEnv("CLICKHOUSE_URL", ""),

		WorkerCount:   getEnvInt("WORKER_COUNT", 2),
		QueueSize:     getEnvInt("QUEUE_SIZE", 10000),
		BatchSize:     getEnvInt("BATCH_SIZE", 500),
		FlushInterval: getEnvDuration("FLUSH_INTERVAL", 1*time.Second),

		ModelDir:           getEnv("MODEL_DIR", "models"),
		PredictionCacheTTL: getEnvDuration("PREDICTION_CACHE_TTL", 15*time.Minute),
		FeatureWindow:      getEnvInt("FEATURE_WINDOW", 5),
		WeekConcurrency:    getEnvInt("WEEK_CONCURRENCY", 4),

		AdminTokenHash: strings.ToLower(getEnv("ADMIN_TOKEN_HASH", "")),

		TrainingConfigPath: getEnv("TRAINING_CONFIG", "configs/training.yaml"),
		TrainSchedule:      getEnv("TRAIN_SCHEDULE", DefaultTrainSchedule),

		RateLimitPerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),
	}

	// CORS
	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	var err error
	if cfg.TrainSeasons, err = ParseSeasons(getEnv("TRAIN_SEASONS", "")); err != nil {
		return nil, fmt.Errorf("TRAIN_SEASONS: %w", err)
	}

	// Critical configuration - fail if missing
	if cfg.PostgresURL, err = getEnvRequired("POSTGRES_URL"); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = getEnvRequired("REDIS_URL"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseSeasons reads a comma separated season list such as "2021,2022,2023".
// Ranges like "2019-2023" are expanded.
func ParseSeasons(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if from, to, ok := strings.Cut(part, "-"); ok {
			a, errA := strconv.Atoi(strings.TrimSpace(from))
			b, errB := strconv.Atoi(strings.TrimSpace(to))
			if errA != nil || errB != nil || b < a {
				return nil, fmt.Errorf("invalid season range %q", part)
			}
			for y := a; y <= b; y++ {
				out = append(out, y)
			}
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid season %q", part)
		}
		out = append(out, y)
	}
	return out, nil
}

// Training is the YAML training configuration
type Training struct {
	Seasons         []int              `yaml:"seasons"`
	Hyperparameters ml.Hyperparameters `yaml:"hyperparameters"`
}

// LoadTraining reads the training file at path. Keys missing from the file
// keep their defaults, and a missing file yields the defaults.
func LoadTraining(path string) (*Training, error) {
	cfg := &Training{Hyperparameters: ml.DefaultHyperparameters()}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read training config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse training config %s: %w", path, err)
	}
	if err := cfg.Hyperparameters.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config %s: %w", path, err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
