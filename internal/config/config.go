package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSecretKey is the development signing key. Never ship it.
const DefaultSecretKey = "your_secret_key"

// Config holds the application configuration.
type Config struct {
	ServerPort          int           `yaml:"port"`
	DatabasePath        string        `yaml:"database_path"`
	SecretKey           string        `yaml:"secret_key"`
	AccessTokenTTL      time.Duration `yaml:"-"`
	BcryptCost          int           `yaml:"bcrypt_cost"`
	AllowedOrigins      []string      `yaml:"allowed_origins"`
	LogLevel            string        `yaml:"log_level"`
	MaintenanceSchedule string        `yaml:"maintenance_schedule"` // cron expression, empty disables

	// AccessTokenExpireMinutes mirrors AccessTokenTTL for the YAML file.
	AccessTokenExpireMinutes int `yaml:"access_token_expire_minutes"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	return &Config{
		ServerPort:               8080,
		DatabasePath:             "./todo.db",
		SecretKey:                DefaultSecretKey,
		AccessTokenExpireMinutes: 30,
		AccessTokenTTL:           30 * time.Minute,
		BcryptCost:               10,
		AllowedOrigins:           []string{"*"},
		LogLevel:                 "info",
		MaintenanceSchedule:      "@hourly",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if set), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if cfg.AccessTokenExpireMinutes <= 0 {
		return nil, fmt.Errorf("access token expiry must be positive, got %d minutes", cfg.AccessTokenExpireMinutes)
	}
	cfg.AccessTokenTTL = time.Duration(cfg.AccessTokenExpireMinutes) * time.Minute

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("secret key must not be empty")
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	// An empty file has nothing to overlay.
	if err := yaml.NewDecoder(file).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var err error
	if c.ServerPort, err = getEnvInt("PORT", c.ServerPort); err != nil {
		return err
	}
	if c.AccessTokenExpireMinutes, err = getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", c.AccessTokenExpireMinutes); err != nil {
		return err
	}
	if c.BcryptCost, err = getEnvInt("BCRYPT_COST", c.BcryptCost); err != nil {
		return err
	}

	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.SecretKey = getEnv("SECRET_KEY", c.SecretKey)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.MaintenanceSchedule = getEnv("MAINTENANCE_SCHEDULE", c.MaintenanceSchedule)

	if origins, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(origins)
	}
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
