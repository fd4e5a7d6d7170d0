package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting of the service.
type Config struct {
	AppPort     string
	ServiceName string

	DatabaseDriver string
	DatabaseDSN    string

	JWTSecret string
	JWTTTL    time.Duration

	CacheBackend string
	CacheTTL     time.Duration
	RedisURL     string

	RabbitMQURL string

	MediaRoot string
	MediaURL  string

	LogLevel  string
	LogFormat string

	PageSize    int
	MaxPageSize int

	ThrottleAnonPerMinute  int
	ThrottleUserPerMinute  int
	ThrottleBurstPerMinute int

	LowStockThreshold int
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("SERVICE_NAME", "myshop")
	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_DSN", "myshop.db")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("CACHE_BACKEND", CacheBackendMemory)
	v.SetDefault("CACHE_TTL", "300s")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("MEDIA_ROOT", "media")
	v.SetDefault("MEDIA_URL", "/media/")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("MAX_PAGE_SIZE", 100)
	v.SetDefault("THROTTLE_ANON_PER_MINUTE", 5)
	v.SetDefault("THROTTLE_USER_PER_MINUTE", 100)
	v.SetDefault("THROTTLE_BURST_PER_MINUTE", 3)
	v.SetDefault("LOW_STOCK_THRESHOLD", 10)
}

// Load reads configuration from the environment and, when CONFIG_FILE is set, from that file.
func Load() (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	return FromViper(v)
}

// FromViper materializes a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		AppPort:                v.GetString("APP_PORT"),
		ServiceName:            v.GetString("SERVICE_NAME"),
		DatabaseDriver:         strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:            v.GetString("DATABASE_DSN"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		JWTTTL:                 v.GetDuration("JWT_TTL"),
		CacheBackend:           strings.ToLower(v.GetString("CACHE_BACKEND")),
		CacheTTL:               v.GetDuration("CACHE_TTL"),
		RedisURL:               v.GetString("REDIS_URL"),
		RabbitMQURL:            v.GetString("RABBITMQ_URL"),
		MediaRoot:              v.GetString("MEDIA_ROOT"),
		MediaURL:               v.GetString("MEDIA_URL"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		LogFormat:              v.GetString("LOG_FORMAT"),
		PageSize:               v.GetInt("PAGE_SIZE"),
		MaxPageSize:            v.GetInt("MAX_PAGE_SIZE"),
		ThrottleAnonPerMinute:  v.GetInt("THROTTLE_ANON_PER_MINUTE"),
		ThrottleUserPerMinute:  v.GetInt("THROTTLE_USER_PER_MINUTE"),
		ThrottleBurstPerMinute: v.GetInt("THROTTLE_BURST_PER_MINUTE"),
		LowStockThreshold:      v.GetInt("LOW_STOCK_THRESHOLD"),
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.PageSize <= 0 || c.MaxPageSize < c.PageSize {
		return fmt.Errorf("PAGE_SIZE must be positive and not exceed MAX_PAGE_SIZE")
	}
	return nil
}
