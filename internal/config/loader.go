// Package config loads service configuration from an optional YAML file, an
// optional .env file and FIVLO_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures the settings of the fivlo service.
type Config struct {
	HTTPPort  int            `yaml:"http_port"`
	Database  DatabaseConfig `yaml:"database"`
	JWTSecret string         `yaml:"jwt_secret"`
	TokenTTL  time.Duration  `yaml:"token_ttl"`
	// Timezone is the default zone for new accounts and for users whose
	// stored zone cannot be loaded.
	Timezone     string         `yaml:"timezone"`
	RewardAmount int64          `yaml:"reward_amount"`
	Reminders    ReminderConfig `yaml:"reminders"`
	OpenAI       OpenAIConfig   `yaml:"openai"`
	Telegram     TelegramConfig `yaml:"telegram"`
}

// DatabaseConfig selects the store driver.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ReminderConfig controls the reminder dispatcher and rewards.
type ReminderConfig struct {
	PremiumOnly bool   `yaml:"premium_only"`
	Schedule    string `yaml:"schedule"`
}

// OpenAIConfig configures the goal planner. An empty APIKey selects the
// offline fallback.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// TelegramConfig enables Telegram notices when Token is set.
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTPPort: 8080,
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:fivlo.db",
		},
		TokenTTL:     24 * time.Hour,
		Timezone:     "Asia/Seoul",
		RewardAmount: 1,
		Reminders: ReminderConfig{
			PremiumOnly: true,
			Schedule:    "* * * * *",
		},
	}
}

// Load reads path (skipped when empty), then .env from the working directory
// when present, then the process environment.
func Load(path string) (Config, error) {
	return LoadWithDotEnv(path, ".env")
}

// LoadWithDotEnv is Load with an explicit .env location. Variables already
// present in the environment win over the .env file.
func LoadWithDotEnv(path, dotenvPath string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if portValue := env("FIVLO_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil {
			invalid = append(invalid, "FIVLO_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if cfg.HTTPPort <= 0 && !contains(invalid, "FIVLO_HTTP_PORT") {
		invalid = append(invalid, "FIVLO_HTTP_PORT")
	}

	if driver := env("FIVLO_DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	switch strings.ToLower(cfg.Database.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pq":
	default:
		invalid = append(invalid, "FIVLO_DB_DRIVER")
	}
	if dsn := env("FIVLO_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}

	if secret := env("FIVLO_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		missing = append(missing, "FIVLO_JWT_SECRET")
	}

	if ttlValue := env("FIVLO_TOKEN_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil {
			invalid = append(invalid, "FIVLO_TOKEN_TTL")
		} else {
			cfg.TokenTTL = ttl
		}
	}
	if cfg.TokenTTL <= 0 && !contains(invalid, "FIVLO_TOKEN_TTL") {
		invalid = append(invalid, "FIVLO_TOKEN_TTL")
	}

	if tz := env("FIVLO_TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil || cfg.Timezone == "" {
		invalid = append(invalid, "FIVLO_TIMEZONE")
	}

	if amountValue := env("FIVLO_REWARD_AMOUNT"); amountValue != "" {
		amount, err := strconv.ParseInt(amountValue, 10, 64)
		if err != nil {
			invalid = append(invalid, "FIVLO_REWARD_AMOUNT")
		} else {
			cfg.RewardAmount = amount
		}
	}
	if cfg.RewardAmount <= 0 && !contains(invalid, "FIVLO_REWARD_AMOUNT") {
		invalid = append(invalid, "FIVLO_REWARD_AMOUNT")
	}

	if premiumValue := env("FIVLO_REMINDER_PREMIUM_ONLY"); premiumValue != "" {
		premium, err := strconv.ParseBool(premiumValue)
		if err != nil {
			invalid = append(invalid, "FIVLO_REMINDER_PREMIUM_ONLY")
		} else {
			cfg.Reminders.PremiumOnly = premium
		}
	}
	if schedule := env("FIVLO_REMINDER_SCHEDULE"); schedule != "" {
		cfg.Reminders.Schedule = schedule
	}

	if key := env("FIVLO_OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}
	if model := env("FIVLO_OPENAI_MODEL"); model != "" {
		cfg.OpenAI.Model = model
	}
	if baseURL := env("FIVLO_OPENAI_BASE_URL"); baseURL != "" {
		cfg.OpenAI.BaseURL = baseURL
	}
	if token := env("FIVLO_TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured default zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
