package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит все настройки приложения
type Config struct {
	Telegram  TelegramConfig
	Bybit     BybitConfig
	Database  DatabaseConfig
	AI        AIConfig
	News      NewsConfig
	Review    ReviewConfig
	Reconcile ReconcileConfig
	Cache     CacheConfig
	LogLevel  string
	LogPretty bool
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

type BybitConfig struct {
	APIKey      string
	APISecret   string
	BaseURL     string
	RatePerSec  float64
	HTTPTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPTimeout time.Duration
}

type NewsConfig struct {
	BaseURL     string
	Token       string
	HTTPTimeout time.Duration
}

type ReviewConfig struct {
	DefaultInterval  time.Duration
	ScheduleSyncEach time.Duration
	FanoutWorkers    int
	KlineInterval    string
	KlineLimit       int
	OrderBookDepth   int
	NewsLimit        int
}

type ReconcileConfig struct {
	Interval time.Duration
}

type CacheConfig struct {
	SignalTTL time.Duration
}

// Load загружает конфигурацию из .env файла
func Load() (*Config, error) {
	// Загружаем .env файл (если есть)
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	chatID, err := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpenConns, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdleConns, err := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	connMaxLifetime, err := time.ParseDuration(getEnv("DB_CONN_MAX_LIFETIME", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	exchangeRate, err := strconv.ParseFloat(getEnv("BYBIT_RATE_PER_SEC", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BYBIT_RATE_PER_SEC: %w", err)
	}

	exchangeTimeout, err := time.ParseDuration(getEnv("BYBIT_HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BYBIT_HTTP_TIMEOUT: %w", err)
	}

	aiTimeout, err := time.ParseDuration(getEnv("AI_HTTP_TIMEOUT", "120s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AI_HTTP_TIMEOUT: %w", err)
	}

	newsTimeout, err := time.ParseDuration(getEnv("NEWS_HTTP_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NEWS_HTTP_TIMEOUT: %w", err)
	}

	reviewInterval, err := time.ParseDuration(getEnv("REVIEW_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_INTERVAL: %w", err)
	}

	scheduleSyncEach, err := time.ParseDuration(getEnv("REVIEW_SYNC_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_SYNC_INTERVAL: %w", err)
	}

	fanoutWorkers, err := strconv.Atoi(getEnv("REVIEW_FANOUT_WORKERS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_FANOUT_WORKERS: %w", err)
	}

	klineLimit, err := strconv.Atoi(getEnv("REVIEW_KLINE_LIMIT", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_KLINE_LIMIT: %w", err)
	}

	orderBookDepth, err := strconv.Atoi(getEnv("REVIEW_ORDERBOOK_DEPTH", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_ORDERBOOK_DEPTH: %w", err)
	}

	newsLimit, err := strconv.Atoi(getEnv("REVIEW_NEWS_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_NEWS_LIMIT: %w", err)
	}

	reconcileInterval, err := time.ParseDuration(getEnv("RECONCILE_INTERVAL", "3m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_INTERVAL: %w", err)
	}

	signalTTL, err := time.ParseDuration(getEnv("SIGNAL_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIGNAL_CACHE_TTL: %w", err)
	}

	logPretty, err := strconv.ParseBool(getEnv("LOG_PRETTY", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_PRETTY: %w", err)
	}

	config := &Config{
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   chatID,
		},
		Bybit: BybitConfig{
			APIKey:      getEnv("BYBIT_API_KEY", ""),
			APISecret:   getEnv("BYBIT_API_SECRET", ""),
			BaseURL:     getEnv("BYBIT_BASE_URL", "https://api.bybit.com"),
			RatePerSec:  exchangeRate,
			HTTPTimeout: exchangeTimeout,
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "rebalance_bot"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpenConns,
			MaxIdleConns:    maxIdleConns,
			ConnMaxLifetime: connMaxLifetime,
		},
		AI: AIConfig{
			APIKey:      getEnv("AI_API_KEY", ""),
			BaseURL:     getEnv("AI_BASE_URL", "https://api.openai.com"),
			Model:       getEnv("AI_MODEL", "gpt-4o-mini"),
			HTTPTimeout: aiTimeout,
		},
		News: NewsConfig{
			BaseURL:     getEnv("NEWS_BASE_URL", "https://cryptopanic.com"),
			Token:       getEnv("NEWS_API_TOKEN", ""),
			HTTPTimeout: newsTimeout,
		},
		Review: ReviewConfig{
			DefaultInterval:  reviewInterval,
			ScheduleSyncEach: scheduleSyncEach,
			FanoutWorkers:    fanoutWorkers,
			KlineInterval:    getEnv("REVIEW_KLINE_INTERVAL", "60"),
			KlineLimit:       klineLimit,
			OrderBookDepth:   orderBookDepth,
			NewsLimit:        newsLimit,
		},
		Reconcile: ReconcileConfig{
			Interval: reconcileInterval,
		},
		Cache: CacheConfig{
			SignalTTL: signalTTL,
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: logPretty,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.Bybit.APIKey == "" {
		return fmt.Errorf("BYBIT_API_KEY is required")
	}
	if c.Bybit.APISecret == "" {
		return fmt.Errorf("BYBIT_API_SECRET is required")
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Review.FanoutWorkers < 1 {
		return fmt.Errorf("REVIEW_FANOUT_WORKERS must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
