package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Application database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Vault database. Kept on separate credentials so that compromise of the
	// application database does not grant detokenization capability.
	VaultPostgresHost     string
	VaultPostgresPort     string
	VaultPostgresUser     string
	VaultPostgresPassword string
	VaultPostgresDB       string
	VaultPostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers    []string
	AlertTopic      string
	OperationalTopic string

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string

	// Vault
	RelayDomain        string
	VaultLimitsFile    string
	BulkAlertThreshold int
	PersistTimeout     time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8090"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "portal"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "portal123"),
		PostgresDB:       getEnv("POSTGRES_DB", "portal"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		VaultPostgresHost:     getEnv("VAULT_POSTGRES_HOST", "localhost"),
		VaultPostgresPort:     getEnv("VAULT_POSTGRES_PORT", "5433"),
		VaultPostgresUser:     getEnv("VAULT_POSTGRES_USER", "vault"),
		VaultPostgresPassword: getEnv("VAULT_POSTGRES_PASSWORD", "vault123"),
		VaultPostgresDB:       getEnv("VAULT_POSTGRES_DB", "token_vault"),
		VaultPostgresSSLMode:  getEnv("VAULT_POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:     getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		AlertTopic:       getEnv("VAULT_ALERT_TOPIC", "vault-security-alerts"),
		OperationalTopic: getEnv("VAULT_OPS_TOPIC", "vault-operational-events"),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),

		RelayDomain:        getEnv("VAULT_RELAY_DOMAIN", "rosterbridge.io"),
		VaultLimitsFile:    getEnv("VAULT_LIMITS_FILE", ""),
		BulkAlertThreshold: getIntEnv("VAULT_BULK_ALERT_THRESHOLD", 100),
		PersistTimeout:     getDuration("VAULT_PERSIST_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
