package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv" // For loading .env files
	"github.com/spf13/viper"   // Environment lookup with defaults
)

// Store backends
const (
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

// Database drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// devSessionSecret is only accepted outside production
const devSessionSecret = "dev-session-secret"

// Config holds the application configuration
type Config struct {
	AppPort       string        // Application port
	IsProd        bool          // Is production environment
	LogLevel      string        // logrus level name
	StoreBackend  string        // sql or memory
	SeedDemo      bool          // Seed the demo users on start
	DBDriver      string        // mysql or postgres
	DBUser        string        // Database user
	DBPassword    string        // Database password
	DBHost        string        // Database host
	DBPort        string        // Database port
	DBName        string        // Database name
	DBSSLMode     string        // PostgreSQL sslmode
	DBAutoMigrate bool          // Run migrations when the server starts
	SessionSecret string        // HMAC key for session tokens
	SessionTTL    time.Duration // Session lifetime
	CookieSecure  bool          // Set the Secure flag on the session cookie
	RedisAddr     string        // Redis server address, empty disables Redis
	RedisPass     string        // Redis password
	RedisDB       int           // Redis database number
	CacheTTL      time.Duration // Lifetime of cached listings
}

// setDefaults registers fallback values for every key
func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "3000")
	v.SetDefault("IS_PROD", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendSQL)
	v.SetDefault("SEED_DEMO", false)
	v.SetDefault("DB_DRIVER", DriverMySQL)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_NAME", "bank")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("SESSION_SECRET", devSessionSecret)
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", 60*time.Second)
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		AppPort:       v.GetString("APP_PORT"),
		IsProd:        v.GetBool("IS_PROD"),
		LogLevel:      strings.ToLower(v.GetString("LOG_LEVEL")),
		StoreBackend:  strings.ToLower(v.GetString("STORE_BACKEND")),
		SeedDemo:      v.GetBool("SEED_DEMO"),
		DBDriver:      strings.ToLower(v.GetString("DB_DRIVER")),
		DBUser:        v.GetString("DB_USER"),
		DBPassword:    v.GetString("DB_PASSWORD"),
		DBHost:        v.GetString("DB_HOST"),
		DBPort:        v.GetString("DB_PORT"),
		DBName:        v.GetString("DB_NAME"),
		DBSSLMode:     v.GetString("DB_SSLMODE"),
		DBAutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		SessionSecret: v.GetString("SESSION_SECRET"),
		SessionTTL:    v.GetDuration("SESSION_TTL"),
		CookieSecure:  v.GetBool("COOKIE_SECURE"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPass:     v.GetString("REDIS_PASS"),
		RedisDB:       v.GetInt("REDIS_DB"),
		CacheTTL:      v.GetDuration("CACHE_TTL"),
	}
	if cfg.DBPort == "" {
		cfg.DBPort = defaultPort(cfg.DBDriver) // Depends on DB_DRIVER
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultPort is the standard listening port for a driver
func defaultPort(driver string) string {
	if driver == DriverPostgres {
		return "5432"
	}
	return "3306"
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQL, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendSQL, BackendMemory, c.StoreBackend)
	}
	if c.StoreBackend == BackendSQL {
		switch c.DBDriver {
		case DriverMySQL, DriverPostgres:
		default:
			return fmt.Errorf("unsupported DB_DRIVER %q, use %q or %q", c.DBDriver, DriverMySQL, DriverPostgres)
		}
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET must not be empty")
	}
	if c.IsProd && c.SessionSecret == devSessionSecret {
		return errors.New("SESSION_SECRET must be set in production")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	return nil
}

// DSN builds the data source name for the configured driver
func (c *Config) DSN() string {
	switch c.DBDriver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
	default:
		return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
	}
}
