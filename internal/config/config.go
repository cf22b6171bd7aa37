// Package config loads the monitor configuration: defaults, then an optional
// YAML file, then environment overrides. The result is validated once and
// treated as read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/scoring"
)

const (
	configPathEnv        = "GRANTS_MONITOR_CONFIG"
	databaseURLEnv       = "DATABASE_URL"
	databaseDriverEnv    = "DATABASE_DRIVER"
	portEnv              = "PORT"
	logLevelEnv          = "LOG_LEVEL"
	adminSecretEnv       = "ADMIN_SECRET"
	jwtSecretEnv         = "JWT_SECRET"
	corsOriginsEnv       = "CORS_ORIGINS"
	smtpServerEnv        = "SMTP_SERVER"
	smtpPortEnv          = "SMTP_PORT"
	smtpUsernameEnv      = "SMTP_USERNAME"
	smtpPasswordEnv      = "SMTP_PASSWORD"
	slackWebhookEnv      = "SLACK_WEBHOOK_URL"
	telegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv    = "TELEGRAM_CHAT_ID"
	natsURLEnv           = "NATS_URL"
	priorityThresholdEnv = "ALERT_PRIORITY_THRESHOLD"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server          ServerConfig           `yaml:"server"`
	Database        DatabaseConfig         `yaml:"database"`
	Logging         LoggingConfig          `yaml:"logging"`
	Matching        scoring.Matching       `yaml:"matching"`
	Scoring         ScoringConfig          `yaml:"scoring"`
	Alerts          AlertsConfig           `yaml:"alerts"`
	Notifications   NotificationsConfig    `yaml:"notifications"`
	Scrapers        ScrapersConfig         `yaml:"scrapers"`
	Resilience      ResilienceConfig       `yaml:"resilience"`
	BusinessProfile models.BusinessProfile `yaml:"business_profile"`
	// ProfilePath, when set, replaces BusinessProfile with the contents of a
	// separate profile file.
	ProfilePath string `yaml:"business_profile_path"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AdminSecret    string   `yaml:"admin_secret"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects the store. Driver is "sqlite" or "postgres"; when
// empty it is inferred from the URL.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type ScoringConfig struct {
	Weights scoring.Weights `yaml:"weights"`
}

type AlertsConfig struct {
	PriorityThreshold   float64 `yaml:"priority_threshold"`
	CheckIntervalHours  int     `yaml:"check_interval_hours"`
	DeadlineWarningDays []int   `yaml:"deadline_warning_days"`
}

func (a AlertsConfig) CheckInterval() time.Duration {
	return time.Duration(a.CheckIntervalHours) * time.Hour
}

type NotificationsConfig struct {
	Email    EmailConfig    `yaml:"email"`
	Slack    SlackConfig    `yaml:"slack"`
	Telegram TelegramConfig `yaml:"telegram"`
	NATS     NATSConfig     `yaml:"nats"`
}

type EmailConfig struct {
	Enabled     bool     `yaml:"enabled"`
	SMTPServer  string   `yaml:"smtp_server"`
	SMTPPort    int      `yaml:"smtp_port"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	FromAddress string   `yaml:"from_address"`
	ToAddresses []string `yaml:"to_addresses"`
}

type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIBase  string `yaml:"api_base"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type ScrapersConfig struct {
	Mock          MockScraperConfig    `yaml:"mock"`
	HorizonEurope HorizonScraperConfig `yaml:"horizon_europe"`
	HTMLListing   ListingScraperConfig `yaml:"html_listing"`
}

type MockScraperConfig struct {
	Enabled bool `yaml:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerMinute    int     `yaml:"requests_per_minute"`
	DelayBetweenRequests float64 `yaml:"delay_between_requests"`
}

type HorizonScraperConfig struct {
	Enabled        bool            `yaml:"enabled"`
	BaseURL        string          `yaml:"base_url"`
	SearchTerms    []string        `yaml:"search_terms"`
	MaxResults     int             `yaml:"max_results"`
	TimeoutSeconds int             `yaml:"timeout_seconds"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// ListingScraperConfig drives the CSS-selector based HTML listing scrape.
type ListingScraperConfig struct {
	Enabled          bool   `yaml:"enabled"`
	URL              string `yaml:"url"`
	ItemSelector     string `yaml:"item_selector"`
	TitleSelector    string `yaml:"title_selector"`
	LinkSelector     string `yaml:"link_selector"`
	DeadlineSelector string `yaml:"deadline_selector"`
	AmountSelector   string `yaml:"amount_selector"`
	Program          string `yaml:"program"`
}

type ResilienceConfig struct {
	RetryMaxAttempts      int     `yaml:"retry_max_attempts"`
	RetryInitialBackoffMS int     `yaml:"retry_initial_backoff_ms"`
	RetryMaxBackoffMS     int     `yaml:"retry_max_backoff_ms"`
	RetryMultiplier       float64 `yaml:"retry_multiplier"`
	BreakerEnabled        bool    `yaml:"breaker_enabled"`
	BreakerMaxRequests    uint32  `yaml:"breaker_max_requests"`
	BreakerIntervalSec    int     `yaml:"breaker_interval_sec"`
	BreakerTimeoutSec     int     `yaml:"breaker_timeout_sec"`
	BreakerFailureRatio   float64 `yaml:"breaker_failure_ratio"`
	BreakerMinRequests    uint32  `yaml:"breaker_min_requests"`
}

// Load builds the configuration. An explicit path wins over
// GRANTS_MONITOR_CONFIG; a missing file is not an error, a malformed one is.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("config: %s not found, using defaults", path)
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if cfg.ProfilePath != "" {
		profile, err := LoadProfile(cfg.ProfilePath)
		if err != nil {
			return Config{}, err
		}
		cfg.BusinessProfile = profile
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseURLEnv); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(portEnv); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(adminSecretEnv)); v != "" {
		c.Server.AdminSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(jwtSecretEnv)); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv(corsOriginsEnv); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}

	if v := os.Getenv(smtpServerEnv); v != "" {
		c.Notifications.Email.SMTPServer = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Notifications.Email.SMTPPort = port
		} else {
			log.Printf("config: ignoring %s=%q: %v", smtpPortEnv, v, err)
		}
	}
	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.Notifications.Email.Username = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Notifications.Email.Password = v
	}
	if v := os.Getenv(slackWebhookEnv); v != "" {
		c.Notifications.Slack.WebhookURL = v
		c.Notifications.Slack.Enabled = true
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if c.Notifications.Telegram.BotToken != "" && c.Notifications.Telegram.ChatID != "" {
		c.Notifications.Telegram.Enabled = true
	}
	if v := os.Getenv(natsURLEnv); v != "" {
		c.Notifications.NATS.URL = v
		c.Notifications.NATS.Enabled = true
	}
	if v := os.Getenv(priorityThresholdEnv); v != "" {
		if th, err := strconv.ParseFloat(v, 64); err == nil {
			c.Alerts.PriorityThreshold = th
		} else {
			log.Printf("config: ignoring %s=%q: %v", priorityThresholdEnv, v, err)
		}
	}
}

// Validate checks the whole configuration, including the default profile.
func (c Config) Validate() error {
	var problems []string
	if c.Server.Port == "" {
		problems = append(problems, "server.port is required")
	}
	switch c.DatabaseDriver() {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}
	if c.Database.URL == "" {
		problems = append(problems, "database.url is required")
	}
	if c.Alerts.PriorityThreshold < 0 || c.Alerts.PriorityThreshold > 100 {
		problems = append(problems, "alerts.priority_threshold must be within [0, 100]")
	}
	if c.Alerts.CheckIntervalHours <= 0 {
		problems = append(problems, "alerts.check_interval_hours must be positive")
	}
	w := c.Scoring.Weights
	if w.Relevance < 0 || w.Complexity < 0 || w.Amount < 0 || w.Deadline < 0 {
		problems = append(problems, "scoring.weights must not be negative")
	}
	if c.Scrapers.HorizonEurope.Enabled && c.Scrapers.HorizonEurope.BaseURL == "" {
		problems = append(problems, "scrapers.horizon_europe.base_url is required when enabled")
	}
	if c.Scrapers.HTMLListing.Enabled && (c.Scrapers.HTMLListing.URL == "" || c.Scrapers.HTMLListing.ItemSelector == "") {
		problems = append(problems, "scrapers.html_listing needs url and item_selector when enabled")
	}
	if err := c.BusinessProfile.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// DatabaseDriver returns the configured driver or infers it from the URL.
func (c Config) DatabaseDriver() string {
	if c.Database.Driver != "" {
		return strings.ToLower(c.Database.Driver)
	}
	if strings.HasPrefix(c.Database.URL, "postgres://") || strings.HasPrefix(c.Database.URL, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// LoadProfile reads a standalone business profile YAML file and validates it.
func LoadProfile(path string) (models.BusinessProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.BusinessProfile{}, fmt.Errorf("read business profile %s: %w", path, err)
	}
	profile := models.DefaultProfile()
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return models.BusinessProfile{}, fmt.Errorf("parse business profile %s: %w", path, err)
	}
	if err := profile.Validate(); err != nil {
		return models.BusinessProfile{}, fmt.Errorf("business profile %s: %w", path, err)
	}
	return profile, nil
}

// WriteExample writes the default configuration to path. Existing files are
// left alone and reported through the returned bool.
func WriteExample(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	raw, err := yaml.Marshal(Default())
	if err != nil {
		return false, fmt.Errorf("encode example config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return false, fmt.Errorf("write example config %s: %w", path, err)
	}
	return true, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8081",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			URL: "data/grants.db",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Service: "grants-monitor",
		},
		Matching: scoring.DefaultMatching(),
		Scoring:  ScoringConfig{Weights: scoring.DefaultWeights()},
		Alerts: AlertsConfig{
			PriorityThreshold:   70,
			CheckIntervalHours:  6,
			DeadlineWarningDays: []int{30, 14, 7, 3, 1},
		},
		Notifications: NotificationsConfig{
			Email: EmailConfig{
				SMTPServer: "smtp.gmail.com",
				SMTPPort:   587,
			},
			Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
			NATS:     NATSConfig{URL: "nats://127.0.0.1:4222", Subject: "grants.alerts"},
		},
		Scrapers: ScrapersConfig{
			Mock: MockScraperConfig{Enabled: true},
			HorizonEurope: HorizonScraperConfig{
				Enabled:        false,
				BaseURL:        "https://ec.europa.eu/info/funding-tenders/opportunities/rest-services",
				SearchTerms:    []string{"artificial intelligence", "machine learning", "digital transformation"},
				MaxResults:     50,
				TimeoutSeconds: 30,
				RateLimit: RateLimitConfig{
					RequestsPerMinute:    60,
					DelayBetweenRequests: 1,
				},
			},
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:      3,
			RetryInitialBackoffMS: 200,
			RetryMaxBackoffMS:     2000,
			RetryMultiplier:       2,
			BreakerEnabled:        true,
			BreakerMaxRequests:    3,
			BreakerIntervalSec:    60,
			BreakerTimeoutSec:     30,
			BreakerFailureRatio:   0.5,
			BreakerMinRequests:    5,
		},
		BusinessProfile: models.DefaultProfile(),
	}
}
