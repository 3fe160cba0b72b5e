// Package config reads process configuration from the environment, optionally
// seeded from a .env file.
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

type Config struct {
	HTTPPort        string
	MetricsPort     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string
	TxLockTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	CartTTL       time.Duration

	KafkaBrokers     []string
	FulfillmentTopic string
	FulfillmentGroup string

	MongoURI    string
	MongoDBName string

	PaystackSecretKey   string
	PaystackBaseURL     string
	PaystackCallbackURL string
	WebhookTrustedMode  bool

	JWTSecret string

	PostmarkAPIToken string
	EmailSender      string

	FulfillmentMaxAttempts int
	FulfillmentBaseDelay   time.Duration
}

// Load reads the environment. A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var errs []error
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second, &errs),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getInt("DB_PORT", 5432, &errs),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "ecommerce"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		TxLockTimeout:  getDuration("TX_LOCK_TIMEOUT", 5*time.Second, &errs),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CartTTL:       getDuration("CART_TTL", 24*time.Hour, &errs),

		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		FulfillmentTopic: getEnv("FULFILLMENT_TOPIC", "fulfillment-tasks"),
		FulfillmentGroup: getEnv("FULFILLMENT_GROUP", "fulfillment-worker"),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "ecommerce_ops"),

		PaystackSecretKey:   getEnv("PAYSTACK_SECRET_KEY", ""),
		PaystackBaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackCallbackURL: getEnv("PAYSTACK_CALLBACK_URL", ""),
		WebhookTrustedMode:  getBool("WEBHOOK_TRUSTED_MODE", false, &errs),

		JWTSecret: getEnv("JWT_SECRET", ""),

		PostmarkAPIToken: getEnv("POSTMARK_API_TOKEN", ""),
		EmailSender:      getEnv("EMAIL_SENDER", ""),

		FulfillmentMaxAttempts: getInt("FULFILLMENT_MAX_ATTEMPTS", 3, &errs),
		FulfillmentBaseDelay:   getDuration("FULFILLMENT_BASE_DELAY", 10*time.Second, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateAPI checks what the API process cannot start without.
func (c *Config) ValidateAPI() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.PaystackSecretKey == "" && !c.WebhookTrustedMode {
		errs = append(errs, errors.New("PAYSTACK_SECRET_KEY is required unless WEBHOOK_TRUSTED_MODE is set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
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
