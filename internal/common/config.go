package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// DefaultAPIOrigin is used when no base URL override is configured.
const DefaultAPIOrigin = "http://127.0.0.1:8000"

// Config holds all configuration for tradeonly
type Config struct {
	Environment string        `toml:"environment"`
	API         APIConfig     `toml:"api"`
	Auth        AuthConfig    `toml:"auth"`
	Storage     StorageConfig `toml:"storage"`
	Events      EventsConfig  `toml:"events"`
	Polling     PollingConfig `toml:"polling"`
	Server      ServerConfig  `toml:"server"`
	Logging     LoggingConfig `toml:"logging"`
}

// APIConfig holds the remote quote/history API configuration
type APIConfig struct {
	BaseURL   string `toml:"base_url"` // origin only; the /api prefix is appended by the client
	Region    string `toml:"region"`   // "us" or "in"
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
	LogoToken string `toml:"logo_token"` // publishable logo.dev token; logos are omitted when empty
}

// GetTimeout parses and returns the timeout duration
func (c *APIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// AuthConfig holds the auth backend configuration
type AuthConfig struct {
	BaseURL     string `toml:"base_url"`
	APIKey      string `toml:"api_key"`
	JWTSecret   string `toml:"jwt_secret"` // optional; tokens are parsed unverified when empty
	SessionFile string `toml:"session_file"`
	Timeout     string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *AuthConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// StorageConfig selects the watchlist persistence backend
type StorageConfig struct {
	Driver    string         `toml:"driver"` // memory | postgres | surrealdb
	Postgres  PostgresConfig `toml:"postgres"`
	SurrealDB SurrealConfig  `toml:"surrealdb"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
}

// ConnString returns the DSN if set, otherwise a key/value connection string.
func (c *PostgresConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// SurrealConfig holds SurrealDB connection settings
type SurrealConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// EventsConfig selects the auth-change notification channel
type EventsConfig struct {
	Driver    string `toml:"driver"` // local | redis
	RedisAddr string `toml:"redis_addr"`
	Channel   string `toml:"channel"`
}

// PollingConfig holds live quote refresh settings
type PollingConfig struct {
	QuoteInterval string `toml:"quote_interval"`
}

// GetQuoteInterval parses the quote polling interval, defaulting to 10s
func (c *PollingConfig) GetQuoteInterval() time.Duration {
	d, err := time.ParseDuration(c.QuoteInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ServerConfig holds the bridge HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		API: APIConfig{
			BaseURL:   DefaultAPIOrigin,
			Region:    "us",
			RateLimit: 10,
			Timeout:   "15s",
		},
		Auth: AuthConfig{
			BaseURL:     "http://127.0.0.1:8000",
			SessionFile: "~/.tradeonly/session.json",
			Timeout:     "10s",
		},
		Storage: StorageConfig{
			Driver: "memory",
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				User:    "tradeonly",
				DBName:  "tradeonly",
				SSLMode: "disable",
			},
			SurrealDB: SurrealConfig{
				Address:   "ws://localhost:8000/rpc",
				Namespace: "tradeonly",
				Database:  "tradeonly",
				Username:  "root",
			},
		},
		Events: EventsConfig{
			Driver:    "local",
			RedisAddr: "localhost:6379",
			Channel:   "tradeonly:auth",
		},
		Polling: PollingConfig{
			QuoteInterval: "10s",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "text",
			Outputs: []string{"console"},
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file in the working directory is loaded first; it never overrides
// variables already present in the environment.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	config.Auth.SessionFile = ExpandHome(config.Auth.SessionFile)
	config.Storage.Driver = strings.ToLower(strings.TrimSpace(config.Storage.Driver))
	config.Events.Driver = strings.ToLower(strings.TrimSpace(config.Events.Driver))

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TRADEONLY_ENV"); env != "" {
		config.Environment = env
	}

	// VITE_API_URL is honoured for .env files shared with the web build
	if url := os.Getenv("VITE_API_URL"); url != "" {
		config.API.BaseURL = url
	}
	if url := os.Getenv("TRADEONLY_API_URL"); url != "" {
		config.API.BaseURL = url
	}
	if token := os.Getenv("TRADEONLY_LOGO_TOKEN"); token != "" {
		config.API.LogoToken = token
	}
	if region := os.Getenv("TRADEONLY_REGION"); region != "" {
		config.API.Region = strings.ToLower(region)
	}

	if url := os.Getenv("TRADEONLY_AUTH_URL"); url != "" {
		config.Auth.BaseURL = url
	}
	if key := os.Getenv("TRADEONLY_AUTH_API_KEY"); key != "" {
		config.Auth.APIKey = key
	}
	if secret := os.Getenv("TRADEONLY_AUTH_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if path := os.Getenv("TRADEONLY_SESSION_FILE"); path != "" {
		config.Auth.SessionFile = path
	}

	if driver := os.Getenv("TRADEONLY_STORAGE"); driver != "" {
		config.Storage.Driver = driver
	}
	if dsn := os.Getenv("TRADEONLY_POSTGRES_DSN"); dsn != "" {
		config.Storage.Postgres.DSN = dsn
	}
	if addr := os.Getenv("TRADEONLY_SURREALDB_ADDRESS"); addr != "" {
		config.Storage.SurrealDB.Address = addr
	}
	if pass := os.Getenv("TRADEONLY_SURREALDB_PASSWORD"); pass != "" {
		config.Storage.SurrealDB.Password = pass
	}

	if driver := os.Getenv("TRADEONLY_EVENTS"); driver != "" {
		config.Events.Driver = driver
	}
	if addr := os.Getenv("TRADEONLY_REDIS_ADDR"); addr != "" {
		config.Events.RedisAddr = addr
	}

	if interval := os.Getenv("TRADEONLY_QUOTE_INTERVAL"); interval != "" {
		config.Polling.QuoteInterval = interval
	}

	if host := os.Getenv("TRADEONLY_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("TRADEONLY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TRADEONLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
