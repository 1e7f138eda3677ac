package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	apperrors "estate-sync/errors"
)

// Store drivers understood by storage.Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all application configuration. Values come from an optional
// YAML file (CONFIG_FILE) and are overridden by environment variables.
type Config struct {
	StoreDriver string `yaml:"store_driver"`

	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`

	SQLitePath string `yaml:"sqlite_path"`

	WebhookURL     string        `yaml:"webhook_url"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	MaxRetries     int           `yaml:"max_retries"`

	CollapseDuplicates bool `yaml:"collapse_duplicates"`

	ExportDir    string        `yaml:"export_dir"`
	ListenAddr   string        `yaml:"listen_addr"`
	SyncCooldown time.Duration `yaml:"sync_cooldown"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StoreDriver: DriverPostgres,

		PostgresHost:     "localhost",
		PostgresPort:     "5432",
		PostgresUser:     "estate",
		PostgresPassword: "estate123",
		PostgresDB:       "estate_db",
		PostgresSSLMode:  "disable",

		SQLitePath: "./data/listings.db",

		WebhookTimeout: 5 * time.Minute,
		MaxRetries:     3,

		ExportDir:    "./output",
		ListenAddr:   ":8080",
		SyncCooldown: 30 * time.Second,

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load reads the .env file, the optional YAML file and the environment, and
// returns a populated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewConfigurationError("config", fmt.Sprintf("read %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.NewConfigurationError("config", fmt.Sprintf("parse %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", c.StoreDriver))

	c.PostgresHost = getEnv("POSTGRES_HOST", c.PostgresHost)
	c.PostgresPort = getEnv("POSTGRES_PORT", c.PostgresPort)
	c.PostgresUser = getEnv("POSTGRES_USER", c.PostgresUser)
	c.PostgresPassword = getEnv("POSTGRES_PASSWORD", c.PostgresPassword)
	c.PostgresDB = getEnv("POSTGRES_DB", c.PostgresDB)
	c.PostgresSSLMode = getEnv("POSTGRES_SSLMODE", c.PostgresSSLMode)

	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)

	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)
	c.WebhookTimeout = getEnvDuration("WEBHOOK_TIMEOUT", c.WebhookTimeout)
	c.MaxRetries = getEnvInt("MAX_RETRIES", c.MaxRetries)

	c.CollapseDuplicates = getEnvBool("COLLAPSE_DUPLICATES", c.CollapseDuplicates)

	c.ExportDir = getEnv("EXPORT_DIR", c.ExportDir)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.SyncCooldown = getEnvDuration("SYNC_COOLDOWN", c.SyncCooldown)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate reports settings that make the store unusable.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.PostgresHost == "" || c.PostgresDB == "" {
			return apperrors.NewConfigurationError("postgres", "POSTGRES_HOST and POSTGRES_DB are required", nil)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return apperrors.NewConfigurationError("sqlite", "SQLITE_PATH is required", nil)
		}
	case DriverMemory:
	default:
		return apperrors.NewConfigurationError("config", fmt.Sprintf("unknown STORE_DRIVER %q", c.StoreDriver), nil)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
