package config

import (
	"log/slog"
	"strings"
	"time"
)

// Store drivers understood by the API.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMySQL    = "mysql"
	StoreDriverMemory   = "memory"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	StoreDriver        string
	DatabaseURL        string
	MySQLDSN           string
	MigrationsDir      string
	AutoMigrate        bool
	LogLevel           slog.Level
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	EventHeartbeat     time.Duration
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4741"),
		StoreDriver:        strings.ToLower(strings.TrimSpace(GetString("STORE_DRIVER", StoreDriverPostgres))),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://gemstones:gemstones@db:5432/gemstones?sslmode=disable"),
		MySQLDSN:           GetString("MYSQL_DSN", "gemstones:gemstones@tcp(db:3306)/gemstones?parseTime=true"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		AutoMigrate:        GetBool("DB_AUTO_MIGRATE", true),
		LogLevel:           GetLevel("LOG_LEVEL", slog.LevelInfo),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		EventHeartbeat:     time.Duration(GetInt("EVENT_HEARTBEAT_SECONDS", 15)) * time.Second,
	}
}

// DSN returns the connection string for the configured store driver.
func (c APIConfig) DSN() string {
	if c.StoreDriver == StoreDriverMySQL {
		return c.MySQLDSN
	}
	return c.DatabaseURL
}
