package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every setting the bulk order service reads at startup
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DatabaseURL  string
	StoreTimeout time.Duration

	TaxRate                  decimal.Decimal
	Currency                 string
	OrderNumberPrefix        string
	DefaultLowStockThreshold int
	MaxImportRows            int
	ReconcileMaxAttempts     int

	Kafka KafkaConfig

	ForecastSchedule string
	ScheduledTenants []int64

	GoogleCredentialsPath string
	ChromePath            string
}

// KafkaConfig configures the low-stock/audit producer and the fulfillment consumer.
// Brokers empty means messaging is disabled and signals are only logged.
type KafkaConfig struct {
	Brokers          []string
	LowStockTopic    string
	AuditTopic       string
	FulfillmentTopic string
	ConsumerGroup    string
}

// Enabled reports whether any broker is configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// LoadEnvFile loads a .env file outside production.
// Values in the file override the process environment, matching local development setups.
func LoadEnvFile(path string) error {
	if os.Getenv("ENV") == "production" {
		return nil
	}
	return godotenv.Overload(path)
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                  strings.TrimPrefix(getEnv("PORT", "8080"), ":"),
		Environment:           getEnv("ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		Currency:              getEnv("CURRENCY", "EUR"),
		OrderNumberPrefix:     getEnv("ORDER_NUMBER_PREFIX", "BULK"),
		ForecastSchedule:      getEnv("FORECAST_SCHEDULE", "0 0 6 * * *"),
		GoogleCredentialsPath: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		ChromePath:            os.Getenv("CHROME_PATH"),
		Kafka: KafkaConfig{
			Brokers:          splitList(os.Getenv("KAFKA_BROKERS")),
			LowStockTopic:    getEnv("KAFKA_LOW_STOCK_TOPIC", "inventory.low-stock"),
			AuditTopic:       getEnv("KAFKA_AUDIT_TOPIC", "orders.audit"),
			FulfillmentTopic: getEnv("KAFKA_FULFILLMENT_TOPIC", "orders.fulfilled"),
			ConsumerGroup:    getEnv("KAFKA_CONSUMER_GROUP", "bulk-order-reconciler"),
		},
	}

	dbURL, err := databaseURL()
	if err != nil {
		return nil, err
	}
	cfg.DatabaseURL = dbURL

	if cfg.StoreTimeout, err = time.ParseDuration(getEnv("STORE_TIMEOUT", "5s")); err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}
	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("STORE_TIMEOUT must be positive")
	}

	if cfg.TaxRate, err = decimal.NewFromString(getEnv("TAX_RATE", "0.24")); err != nil {
		return nil, fmt.Errorf("invalid TAX_RATE: %w", err)
	}
	if cfg.TaxRate.IsNegative() {
		return nil, fmt.Errorf("TAX_RATE cannot be negative")
	}

	if cfg.DefaultLowStockThreshold, err = getInt("DEFAULT_LOW_STOCK_THRESHOLD", 10); err != nil {
		return nil, err
	}
	if cfg.MaxImportRows, err = getInt("MAX_IMPORT_ROWS", 1000); err != nil {
		return nil, err
	}
	if cfg.ReconcileMaxAttempts, err = getInt("RECONCILE_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.ReconcileMaxAttempts < 1 {
		return nil, fmt.Errorf("RECONCILE_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.ScheduledTenants, err = parseIDs(getEnv("SCHEDULED_TENANT_IDS", "1")); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULED_TENANT_IDS: %w", err)
	}

	return cfg, nil
}

// databaseURL builds the connection string from DATABASE_URL or the DB_* variables
func databaseURL() (string, error) {
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		return connStr, nil
	}

	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	dbname := os.Getenv("DB_NAME")
	if host == "" || user == "" || dbname == "" {
		return "", fmt.Errorf("database connection variables not set. Set DATABASE_URL or DB_HOST, DB_USER, DB_NAME")
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host,
		getEnv("DB_PORT", "5432"),
		user,
		os.Getenv("DB_PASSWORD"),
		dbname,
		getEnv("DB_SSLMODE", "disable"),
	), nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDs(raw string) ([]int64, error) {
	parts := splitList(raw)
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		if id <= 0 {
			return nil, fmt.Errorf("tenant id %d must be positive", id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
