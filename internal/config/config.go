package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment         string
	DBHost              string
	DBPort              string
	DBUsername          string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	Port                string
	LogLevel            string
	LogFile             string
	SyncIntervalSeconds int
	SyncFetchLimit      int
	SyncParallelism     int
	WSMaxConnections    int
	RecipientGroups     string
	Timezone            string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MAILSYNC_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:         env,
		DBHost:              getEnvOrDefault("MAILSYNC_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("MAILSYNC_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("MAILSYNC_DB_USER", "mailsync"),
		DBPassword:          os.Getenv("MAILSYNC_DB_PASSWORD"),
		DBName:              getEnvOrDefault("MAILSYNC_DB_NAME", "mailsync"),
		DBSSLMode:           getEnvOrDefault("MAILSYNC_DB_SSLMODE", "disable"),
		Port:                getEnvOrDefault("PORT", "8080"),
		LogLevel:            getEnvOrDefault("MAILSYNC_LOG_LEVEL", "info"),
		LogFile:             os.Getenv("MAILSYNC_LOG_FILE"),
		SyncIntervalSeconds: getEnvIntOrDefault("MAILSYNC_SYNC_INTERVAL_SECONDS", 30),
		SyncFetchLimit:      getEnvIntOrDefault("MAILSYNC_SYNC_FETCH_LIMIT", 50),
		SyncParallelism:     getEnvIntOrDefault("MAILSYNC_SYNC_PARALLELISM", 4),
		WSMaxConnections:    getEnvIntOrDefault("MAILSYNC_WS_MAX_CONNECTIONS", 64),
		RecipientGroups:     os.Getenv("MAILSYNC_RECIPIENT_GROUPS"),
		Timezone:            getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("MAILSYNC_DB_PASSWORD is required")
	}

	if c.SyncIntervalSeconds <= 0 {
		return fmt.Errorf("MAILSYNC_SYNC_INTERVAL_SECONDS must be positive")
	}

	if c.SyncFetchLimit <= 0 {
		return fmt.Errorf("MAILSYNC_SYNC_FETCH_LIMIT must be positive")
	}

	if c.SyncParallelism <= 0 {
		return fmt.Errorf("MAILSYNC_SYNC_PARALLELISM must be positive")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.DBUsername),
		url.QueryEscape(c.DBPassword),
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
