package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Env       string
	LogLevel  string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	Registry  RegistryConfig
	Sync      SyncConfig
	Nearby    NearbyConfig
	Admin     AdminConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host             string
	Port             int
	AllowedOrigins   []string
	// ResponseCacheTTL bounds how long GET /api/hospitals pages are served
	// from Redis. Zero disables the response cache.
	ResponseCacheTTL time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Migrate  bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL     string
	APIKey  string
	Enabled bool
}

// RegistryConfig holds the hospital registry (HIRA) API configuration
type RegistryConfig struct {
	BaseURL       string
	ServiceKey    string
	Timeout       time.Duration
	RatePerSecond float64
}

// KeyConfigured reports whether a registry service key is present.
func (c *RegistryConfig) KeyConfigured() bool {
	return strings.TrimSpace(c.ServiceKey) != ""
}

// SyncConfig holds region traversal settings
type SyncConfig struct {
	PageSize          int
	MaxPagesPerRegion int
	EmptyPageRetries  int
	RetryDelay        time.Duration
	IdempotencyTTL    time.Duration
}

// NearbyConfig holds proximity query limits
type NearbyConfig struct {
	MaxResults      int
	MaxRadiusMeters float64
}

// AdminConfig holds admin-only endpoint settings
type AdminConfig struct {
	SyncKey string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:             getEnv("SERVER_HOST", "0.0.0.0"),
			Port:             getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins:   getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			ResponseCacheTTL: getEnvAsDuration("RESPONSE_CACHE_TTL", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "medicheck"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getEnvAsBool("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Typesense: TypesenseConfig{
			URL:     getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:  getEnv("TYPESENSE_API_KEY", "xyz"),
			Enabled: getEnvAsBool("TYPESENSE_ENABLED", false),
		},
		Registry: RegistryConfig{
			BaseURL:       getEnv("HIRA_BASE_URL", "https://apis.data.go.kr/B551182/hospInfoServicev2"),
			ServiceKey:    getEnv("HIRA_SERVICE_KEY", ""),
			Timeout:       time.Duration(getEnvAsInt("HIRA_TIMEOUT_SECONDS", 10)) * time.Second,
			RatePerSecond: getEnvAsFloat("HIRA_RATE_PER_SECOND", 5),
		},
		Sync: SyncConfig{
			PageSize:          getEnvAsInt("SYNC_PAGE_SIZE", 100),
			MaxPagesPerRegion: getEnvAsInt("SYNC_MAX_PAGES_PER_REGION", 100),
			EmptyPageRetries:  getEnvAsInt("SYNC_EMPTY_PAGE_RETRIES", 1),
			RetryDelay:        getEnvAsDuration("SYNC_RETRY_DELAY", 2*time.Second),
			IdempotencyTTL:    getEnvAsDuration("SYNC_IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Nearby: NearbyConfig{
			MaxResults:      getEnvAsInt("NEARBY_MAX_RESULTS", 500),
			MaxRadiusMeters: getEnvAsFloat("NEARBY_MAX_RADIUS_METERS", 50000),
		},
		Admin: AdminConfig{
			SyncKey: getEnv("ADMIN_SYNC_KEY", ""),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "medicheck"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Database.Driver)
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be positive, got %d", c.Sync.PageSize)
	}
	if c.Sync.MaxPagesPerRegion <= 0 {
		return fmt.Errorf("SYNC_MAX_PAGES_PER_REGION must be positive, got %d", c.Sync.MaxPagesPerRegion)
	}
	if c.Nearby.MaxResults <= 0 {
		return fmt.Errorf("NEARBY_MAX_RESULTS must be positive, got %d", c.Nearby.MaxResults)
	}
	if c.Nearby.MaxRadiusMeters <= 0 {
		return fmt.Errorf("NEARBY_MAX_RADIUS_METERS must be positive, got %g", c.Nearby.MaxRadiusMeters)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
