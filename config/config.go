package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-level settings read from the environment.
// Detection and response policy lives in the YAML ResponseConfig.
type Config struct {
	// Policy file
	ConfigPath string

	// Logging settings
	LogDir       string
	LogLevel     string
	ConsoleLogs  bool
	LogRetention time.Duration

	// Operator API
	HTTPAddr      string
	StatsInterval time.Duration
	// Bearer token for canary listing and containment reset
	OperatorToken string

	// Broker and store endpoints, override the policy file when set
	NATSURL       string
	KafkaBrokers  []string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Forces safe mode regardless of the policy file
	ForceSafeMode bool
}

// Load loads configuration from environment variables with defaults.
// A .env file in the working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ConfigPath:    getEnv("RANSOMTRAP_CONFIG", DefaultConfigPath),
		LogDir:        getEnv("LOG_DIR", "logs"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ConsoleLogs:   getBoolEnv("CONSOLE_LOGS", true),
		LogRetention:  getDurationEnv("LOG_RETENTION", 7*24*time.Hour),
		HTTPAddr:      getEnv("HTTP_ADDR", "127.0.0.1:9464"),
		StatsInterval: getDurationEnv("STATS_INTERVAL", 5*time.Minute),
		OperatorToken: getEnv("OPERATOR_TOKEN", ""),
		NATSURL:       getEnv("NATS_URL", ""),
		KafkaBrokers:  getListEnv("KAFKA_BROKERS"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		ForceSafeMode: getBoolEnv("FORCE_SAFE_MODE", false),
	}
}

// Apply copies environment overrides onto the policy
func (c *Config) Apply(rc *ResponseConfig) {
	if c.NATSURL != "" {
		rc.Sinks.NATS.URL = c.NATSURL
	}
	if len(c.KafkaBrokers) > 0 {
		rc.Sinks.Kafka.Brokers = c.KafkaBrokers
	}
	if c.RedisAddr != "" {
		rc.LedgerStore.Type = LedgerStoreRedis
		rc.LedgerStore.Redis.Addr = c.RedisAddr
		rc.LedgerStore.Redis.DB = c.RedisDB
	}
	if c.RedisPassword != "" {
		rc.LedgerStore.Redis.Password = c.RedisPassword
	}
	if c.ForceSafeMode {
		rc.Containment.SafeMode = true
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated variable, dropping empty items
func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
