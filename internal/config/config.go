package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// gatewayCallMargin covers the database work around a single gateway call.
const gatewayCallMargin = 10 * time.Second

type Config struct {
	DBConfig struct {
		Host     string `env:"PAYMENTS_DB_HOST"`
		Port     int    `env:"PAYMENTS_DB_PORT"`
		User     string `env:"PAYMENTS_DB_USER"`
		Password string `env:"PAYMENTS_DB_PASSWORD"`
		Name     string `env:"PAYMENTS_DB_NAME"`
		SSLMode  string `env:"PAYMENTS_DB_SSLMODE"`
	}

	KafkaBrokerURL          string `env:"KAFKA_BROKER_URL"`
	KafkaStatusReportsTopic string `env:"KAFKA_STATUS_REPORTS_TOPIC"`
	KafkaStateChangesTopic  string `env:"KAFKA_STATE_CHANGES_TOPIC"`
	KafkaConsumerGroup      string `env:"KAFKA_CONSUMER_GROUP"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxPollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT"`

	RedisConfig struct {
		Addr     string        `env:"REDIS_ADDR"`
		Password string        `env:"REDIS_PASSWORD"`
		DB       int           `env:"REDIS_DB"`
		LockTTL  time.Duration `env:"REDIS_LOCK_TTL"`
	}

	BraintreeConfig struct {
		Environment        string        `env:"BRAINTREE_ENVIRONMENT"`
		MerchantID         string        `env:"BRAINTREE_MERCHANT_ID"`
		PublicKey          string        `env:"BRAINTREE_PUBLIC_KEY"`
		PrivateKey         string        `env:"BRAINTREE_PRIVATE_KEY"`
		Timeout            time.Duration `env:"BRAINTREE_TIMEOUT"`
		BreakerMaxFailures int           `env:"BRAINTREE_BREAKER_MAX_FAILURES"`
		BreakerOpenTimeout time.Duration `env:"BRAINTREE_BREAKER_OPEN_TIMEOUT"`
	}

	HTTPPort           int    `env:"HTTP_PORT"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"`
	MigrationsPath     string `env:"MIGRATIONS_PATH"`
}

// LoadConfig reads the environment, after loading .env from the working
// directory when one exists.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	cfg.DBConfig.Host = getEnvOrDefault("PAYMENTS_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("PAYMENTS_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("PAYMENTS_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("PAYMENTS_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("PAYMENTS_DB_NAME", "payments_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("PAYMENTS_DB_SSLMODE", "disable")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaStatusReportsTopic = getEnvOrDefault("KAFKA_STATUS_REPORTS_TOPIC", "braintree_status_reports")
	cfg.KafkaStateChangesTopic = getEnvOrDefault("KAFKA_STATE_CHANGES_TOPIC", "transaction_state_changes")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "payments-reconciler-group")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 5*time.Second)

	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", "")
	cfg.RedisConfig.DB = getEnvAsInt("REDIS_DB", 0)
	cfg.RedisConfig.LockTTL = getEnvAsDuration("REDIS_LOCK_TTL", 60*time.Second)

	cfg.BraintreeConfig.Environment = getEnvOrDefault("BRAINTREE_ENVIRONMENT", "Sandbox")
	cfg.BraintreeConfig.MerchantID = getEnvOrDefault("BRAINTREE_MERCHANT_ID", "")
	cfg.BraintreeConfig.PublicKey = getEnvOrDefault("BRAINTREE_PUBLIC_KEY", "")
	cfg.BraintreeConfig.PrivateKey = getEnvOrDefault("BRAINTREE_PRIVATE_KEY", "")
	cfg.BraintreeConfig.Timeout = getEnvAsDuration("BRAINTREE_TIMEOUT", 30*time.Second)
	cfg.BraintreeConfig.BreakerMaxFailures = getEnvAsInt("BRAINTREE_BREAKER_MAX_FAILURES", 5)
	cfg.BraintreeConfig.BreakerOpenTimeout = getEnvAsDuration("BRAINTREE_BREAKER_OPEN_TIMEOUT", 60*time.Second)

	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 8082)
	cfg.CORSAllowedOrigins = getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "file:///app/migrations")

	if cfg.BraintreeConfig.BreakerMaxFailures < 1 {
		return nil, fmt.Errorf("BRAINTREE_BREAKER_MAX_FAILURES must be positive, got %d", cfg.BraintreeConfig.BreakerMaxFailures)
	}
	if cfg.BraintreeConfig.Timeout <= 0 {
		return nil, fmt.Errorf("BRAINTREE_TIMEOUT must be positive, got %s", cfg.BraintreeConfig.Timeout)
	}
	// The transaction lock is held across a whole charge, so it must outlive it.
	if cfg.RedisConfig.LockTTL <= cfg.RequestTimeout() {
		return nil, fmt.Errorf("REDIS_LOCK_TTL (%s) must exceed BRAINTREE_TIMEOUT plus %s (%s)",
			cfg.RedisConfig.LockTTL, gatewayCallMargin, cfg.RequestTimeout())
	}

	return cfg, nil
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

// RequestTimeout bounds an HTTP request that makes one gateway call.
func (c *Config) RequestTimeout() time.Duration {
	return c.BraintreeConfig.Timeout + gatewayCallMargin
}

func (c *Config) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokerURL)
}

func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
