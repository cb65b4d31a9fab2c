package config

import (
	"fmt"
	"time"
)

// Config is the full runtime configuration. It is built once in main and
// handed to each component; nothing reads it through a package variable.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Kafka    KafkaConfig
	Ledger   LedgerConfig
	KYC      KYCConfig
}

type AppConfig struct {
	Env      string
	Port     string
	LogLevel string
}

// DatabaseConfig selects and tunes the ledger store. Driver "memory" runs
// the in-process store and ignores the connection settings.
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// StripeConfig holds provider credentials. An empty SecretKey selects the
// in-memory sandbox gateway.
type StripeConfig struct {
	SecretKey string
	ReturnURL string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LedgerConfig tunes the money-movement engine.
type LedgerConfig struct {
	Currency        string
	GatewayTimeout  time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	SettlementLock  time.Duration
	StatusCacheTTL  time.Duration
	NotifyQueueSize int
}

type KYCConfig struct {
	AutoApprove bool
}

// Load reads every section from the environment, applying defaults.
func Load() Config {
	return Config{
		App: AppConfig{
			Env:      GetEnv("ENV", "development"),
			Port:     GetEnv("PORT", "3000"),
			LogLevel: GetEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver:          GetEnv("DB_DRIVER", "postgres"),
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetEnv("DB_PORT", "5432"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "custody"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
		},
		Stripe: StripeConfig{
			SecretKey: GetEnv("STRIPE_SECRET_KEY", ""),
			ReturnURL: GetEnv("STRIPE_RETURN_URL", "https://example.com/return"),
		},
		Kafka: KafkaConfig{
			Brokers: GetListEnv("KAFKA_BROKERS"),
			Topic:   GetEnv("KAFKA_NOTIFICATION_TOPIC", "custody.notifications"),
		},
		Ledger: LedgerConfig{
			Currency:        GetEnv("LEDGER_CURRENCY", "USD"),
			GatewayTimeout:  GetDurationEnv("GATEWAY_TIMEOUT", 15*time.Second),
			MaxRetries:      GetIntEnv("LEDGER_MAX_RETRIES", 3),
			RetryBackoff:    GetDurationEnv("LEDGER_RETRY_BACKOFF", 25*time.Millisecond),
			SettlementLock:  GetDurationEnv("SETTLEMENT_LOCK_TTL", 30*time.Second),
			StatusCacheTTL:  GetDurationEnv("PAYMENT_STATUS_CACHE_TTL", 24*time.Hour),
			NotifyQueueSize: GetIntEnv("NOTIFY_QUEUE_SIZE", 256),
		},
		KYC: KYCConfig{
			AutoApprove: GetBoolEnv("AUTO_APPROVE_KYC", false),
		},
	}
}
