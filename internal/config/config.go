package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port    string `yaml:"port"`
	DBPath  string `yaml:"db_path"`
	Workers int    `yaml:"workers"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	SourceBaseURL     string        `yaml:"source_base_url"`
	PageSize          int           `yaml:"page_size"`
	PageDelay         time.Duration `yaml:"page_delay"`
	MaxRowsPerSymbol  int           `yaml:"max_rows_per_symbol"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	DirectoryTTL      time.Duration `yaml:"directory_ttl"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`

	HarvestSchedule string `yaml:"harvest_schedule"`
	FeedSchedule    string `yaml:"feed_schedule"`
	RunOnStart      bool   `yaml:"run_on_start"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

func defaults() Config {
	return Config{
		Port:             "8080",
		DBPath:           "harvester.db",
		Workers:          10,
		SourceBaseURL:    "https://www.newsmaker.id/index.php/en",
		PageSize:         50,
		PageDelay:        500 * time.Millisecond,
		MaxRowsPerSymbol: 0,
		CacheTTL:         2 * time.Hour,
		DirectoryTTL:     10 * time.Minute,
		RequestTimeout:   120 * time.Second,
		RetryBaseDelay:   time.Second,
		HarvestSchedule:  "@hourly",
		FeedSchedule:     "@every 30m",
		RunOnStart:       true,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.Workers = getEnvInt("WORKERS", cfg.Workers)

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)

	cfg.SourceBaseURL = getEnv("SOURCE_BASE_URL", cfg.SourceBaseURL)
	cfg.PageSize = getEnvInt("PAGE_SIZE", cfg.PageSize)
	cfg.PageDelay = getEnvDuration("PAGE_DELAY", cfg.PageDelay)
	cfg.MaxRowsPerSymbol = getEnvInt("MAX_ROWS_PER_SYMBOL", cfg.MaxRowsPerSymbol)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.DirectoryTTL = getEnvDuration("DIRECTORY_TTL", cfg.DirectoryTTL)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.RetryBaseDelay = getEnvDuration("RETRY_BASE_DELAY", cfg.RetryBaseDelay)
	cfg.RequestsPerSecond = getEnvFloat("REQUESTS_PER_SECOND", cfg.RequestsPerSecond)

	cfg.HarvestSchedule = getEnv("HARVEST_SCHEDULE", cfg.HarvestSchedule)
	cfg.FeedSchedule = getEnv("FEED_SCHEDULE", cfg.FeedSchedule)
	cfg.RunOnStart = getEnvBool("RUN_ON_START", cfg.RunOnStart)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, errors.New("page_size must be positive"))
	}
	if c.MaxRowsPerSymbol < 0 {
		errs = append(errs, errors.New("max_rows_per_symbol must not be negative"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache_ttl must be positive"))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests_per_second must not be negative"))
	}
	if c.SourceBaseURL == "" {
		errs = append(errs, errors.New("source_base_url is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
