package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env         string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Directory   DirectoryConfig
	Geolocation GeolocationConfig
	Map         MapConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled bool
	URL     string
	APIKey  string
}

// DirectoryConfig selects where directory entries come from
type DirectoryConfig struct {
	// Source is "static" (YAML seed file) or "postgres"
	Source   string
	SeedPath string
	// MatchAllTokens switches free-text search from any-token to all-token matching
	MatchAllTokens bool
	// WarmInterval is how often the provider cache is re-warmed; 0 disables warming
	WarmInterval time.Duration
}

// GeolocationConfig holds the location capability configuration
type GeolocationConfig struct {
	// Source is "browser", "ip", "static" or "none"
	Source          string
	Timeout         time.Duration
	MaxAge          time.Duration
	LookupURL       string
	LookupRate      float64
	StaticLatitude  float64
	StaticLongitude float64
	CacheSize       int
}

// MapConfig holds map session configuration
type MapConfig struct {
	SessionTTL  time.Duration
	MaxSessions int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables, reading an optional
// .env file first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			RateLimit:      getEnvAsFloat("SERVER_RATE_LIMIT", 20),
			RateBurst:      getEnvAsInt("SERVER_RATE_BURST", 40),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "provider_directory"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			Enabled: getEnvAsBool("TYPESENSE_ENABLED", false),
			URL:     getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:  getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		Directory: DirectoryConfig{
			Source:         getEnv("DIRECTORY_SOURCE", "static"),
			SeedPath:       getEnv("DIRECTORY_SEED_PATH", "data/providers.yaml"),
			MatchAllTokens: getEnvAsBool("DIRECTORY_SEARCH_MATCH_ALL_TOKENS", false),
			WarmInterval:   getEnvAsDuration("DIRECTORY_CACHE_WARM_INTERVAL", 10*time.Minute),
		},
		Geolocation: GeolocationConfig{
			Source:          getEnv("GEOLOCATION_SOURCE", "browser"),
			Timeout:         getEnvAsDuration("GEOLOCATION_TIMEOUT", 10*time.Second),
			MaxAge:          getEnvAsDuration("GEOLOCATION_MAX_AGE", 5*time.Minute),
			LookupURL:       getEnv("GEOLOCATION_LOOKUP_URL", "http://ip-api.com/json"),
			LookupRate:      getEnvAsFloat("GEOLOCATION_LOOKUP_RATE", 0.75),
			StaticLatitude:  getEnvAsFloat("GEOLOCATION_STATIC_LAT", 39.8283),
			StaticLongitude: getEnvAsFloat("GEOLOCATION_STATIC_LNG", -98.5795),
			CacheSize:       getEnvAsInt("GEOLOCATION_CACHE_SIZE", 10000),
		},
		Map: MapConfig{
			SessionTTL:  getEnvAsDuration("MAP_SESSION_TTL", 30*time.Minute),
			MaxSessions: getEnvAsInt("MAP_MAX_SESSIONS", 5000),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "provider-directory"),
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
	switch c.Directory.Source {
	case "static", "postgres":
	default:
		return fmt.Errorf("DIRECTORY_SOURCE must be static or postgres, got %q", c.Directory.Source)
	}
	switch c.Geolocation.Source {
	case "browser", "ip", "static", "none":
	default:
		return fmt.Errorf("GEOLOCATION_SOURCE must be browser, ip, static or none, got %q", c.Geolocation.Source)
	}
	if c.Geolocation.Timeout <= 0 {
		return fmt.Errorf("GEOLOCATION_TIMEOUT must be positive")
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
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
