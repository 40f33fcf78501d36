// Package config provides YAML-based configuration loading for shiftlog.
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
	"github.com/zulandar/shiftlog/internal/chat"
	"gopkg.in/yaml.v3"
)

// Supported chat platforms.
const (
	PlatformTelegram = "telegram"
	PlatformSlack    = "slack"
	PlatformDiscord  = "discord"
)

// Config is the top-level shiftlog configuration, loaded from a YAML file
// and overridden by environment variables.
type Config struct {
	Platform string         `yaml:"platform"`
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
	Discord  DiscordConfig  `yaml:"discord"`
	Flow     FlowConfig     `yaml:"flow"`
	Google   GoogleConfig   `yaml:"google"`
	Sessions SessionsConfig `yaml:"sessions"`
	Database DatabaseConfig `yaml:"database"`
	Health   HealthConfig   `yaml:"health"`
	Broker   BrokerConfig   `yaml:"broker"`
	PhotoDir string         `yaml:"photo_dir"`
	Timezone string         `yaml:"timezone"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// SlackConfig holds Slack Socket Mode settings.
type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// FlowConfig selects which optional steps the report conversation includes.
type FlowConfig struct {
	JourneyType     bool `yaml:"journey_type"`
	ComputeDistance bool `yaml:"compute_distance"`
	RequirePhotos   bool `yaml:"require_photos"`
}

// GoogleConfig holds the spreadsheet, Drive folder and service-account
// credentials.
type GoogleConfig struct {
	SheetID         string `yaml:"sheet_id"`
	SheetName       string `yaml:"sheet_name"`
	DriveFolderID   string `yaml:"drive_folder_id"`
	CredentialsJSON string `yaml:"credentials_json"`
	CredentialsFile string `yaml:"credentials_file"`
}

// SessionsConfig controls conversation expiry.
type SessionsConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"` // 0 disables expiry
	SweepCron   string        `yaml:"sweep_cron"`
}

// DatabaseConfig holds the audit journal database settings. URL, when set,
// takes precedence over the individual fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
}

// HealthConfig holds the liveness/metrics HTTP server settings.
// ExposeOutcomes adds /api/outcomes; the port is usually public, so it is
// off unless set.
type HealthConfig struct {
	Port           int  `yaml:"port"`
	ExposeOutcomes bool `yaml:"expose_outcomes"`
}

// BrokerConfig holds the optional RabbitMQ publisher settings.
type BrokerConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// Enabled reports whether outcome events should be published.
func (b BrokerConfig) Enabled() bool { return b.URL != "" }

// Location resolves the configured timezone, defaulting to the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads an optional .env file and an optional YAML config file, then
// applies environment overrides and returns a validated Config. An empty
// path means configuration comes from the environment only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		data = b
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes, applies environment overrides and returns a
// validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with any set environment variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Platform, "SHIFTLOG_PLATFORM")
	set(&c.Telegram.Token, "TELEGRAM_TOKEN")
	set(&c.Slack.AppToken, "SLACK_APP_TOKEN")
	set(&c.Slack.BotToken, "SLACK_BOT_TOKEN")
	set(&c.Discord.BotToken, "DISCORD_BOT_TOKEN")
	set(&c.Google.SheetID, "GOOGLE_SHEET_ID")
	set(&c.Google.DriveFolderID, "GOOGLE_DRIVE_FOLDER_ID")
	set(&c.Google.CredentialsJSON, "GOOGLE_CREDENTIALS_JSON")
	set(&c.Google.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	set(&c.Broker.URL, "AMQP_URL")
	set(&c.Database.URL, "DATABASE_URL")
	set(&c.Timezone, "TZ")

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PORT %q is not a number", v)
		}
		c.Health.Port = port
	}
	return nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = PlatformTelegram
	}
	c.Platform = strings.ToLower(c.Platform)
	if c.Sessions.SweepCron == "" {
		c.Sessions.SweepCron = chat.DefaultSweepSchedule
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "shiftlog.db"
	}
	if c.Database.Driver == "mysql" && c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Health.Port == 0 {
		c.Health.Port = 10000
	}
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "shiftlog.reports"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Platform {
	case PlatformTelegram:
		if c.Telegram.Token == "" {
			errs = append(errs, "telegram.token (TELEGRAM_TOKEN) is required")
		}
	case PlatformSlack:
		if c.Slack.AppToken == "" {
			errs = append(errs, "slack.app_token (SLACK_APP_TOKEN) is required")
		}
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token (SLACK_BOT_TOKEN) is required")
		}
	case PlatformDiscord:
		if c.Discord.BotToken == "" {
			errs = append(errs, "discord.bot_token (DISCORD_BOT_TOKEN) is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("platform %q is not supported (telegram, slack, discord)", c.Platform))
	}
	if c.Google.SheetID == "" {
		errs = append(errs, "google.sheet_id (GOOGLE_SHEET_ID) is required")
	}
	if c.Google.CredentialsJSON == "" && c.Google.CredentialsFile == "" {
		errs = append(errs, "google.credentials_json (GOOGLE_CREDENTIALS_JSON) or google.credentials_file is required")
	}
	if c.Sessions.IdleTimeout < 0 {
		errs = append(errs, "sessions.idle_timeout must not be negative")
	}
	if err := chat.ValidateSchedule(c.Sessions.SweepCron); err != nil {
		errs = append(errs, fmt.Sprintf("sessions.sweep_cron: %v", err))
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Database.Driver == "mysql" && c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		errs = append(errs, "database.host and database.name are required for mysql")
	}
	if c.Health.Port < 0 || c.Health.Port > 65535 {
		errs = append(errs, fmt.Sprintf("health.port %d is out of range", c.Health.Port))
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("timezone %q is unknown", c.Timezone))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
