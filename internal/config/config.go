package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/MEKXH/dropwatch/internal/policy"
)

// EnvFile is loaded from the working directory before the config is read.
const EnvFile = ".env.local"

// ConfirmProdValue must be set in confirm_prod before mode=prod is accepted.
const ConfirmProdValue = "YES"

// Config root configuration
type Config struct {
	Mode        string          `mapstructure:"mode" json:"mode"`
	ConfirmProd string          `mapstructure:"confirm_prod" json:"confirm_prod"`
	Product     ProductConfig   `mapstructure:"product" json:"product"`
	Gateway     GatewayConfig   `mapstructure:"gateway" json:"gateway"`
	Webhook     WebhookConfig   `mapstructure:"webhook" json:"webhook"`
	Approval    ApprovalConfig  `mapstructure:"approval" json:"approval"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit" json:"rate_limit"`
	Notify      NotifyConfig    `mapstructure:"notify" json:"notify"`
	Secrets     SecretsConfig   `mapstructure:"secrets" json:"secrets"`
	Browser     BrowserConfig   `mapstructure:"browser" json:"browser"`
	Run         RunConfig       `mapstructure:"run" json:"run"`
	Audit       AuditConfig     `mapstructure:"audit" json:"audit"`
	Log         LogConfig       `mapstructure:"log" json:"log"`
}

// ProductConfig the product being watched
type ProductConfig struct {
	Name string `mapstructure:"name" json:"name"`
	URL  string `mapstructure:"url" json:"url"`
}

// GatewayConfig server settings
type GatewayConfig struct {
	Host         string `mapstructure:"host" json:"host"`
	Port         int    `mapstructure:"port" json:"port"`
	PublicURL    string `mapstructure:"public_url" json:"public_url"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes" json:"max_body_bytes"`
}

// WebhookConfig ingress authentication settings
type WebhookConfig struct {
	TimestampToleranceSeconds int    `mapstructure:"timestamp_tolerance_seconds" json:"timestamp_tolerance_seconds"`
	SecretName                string `mapstructure:"secret_name" json:"secret_name"`
	LedgerCapacity            int    `mapstructure:"ledger_capacity" json:"ledger_capacity"`
}

// ApprovalConfig human approval settings
type ApprovalConfig struct {
	TimeoutSeconds      int `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" json:"poll_interval_seconds"`
	MaxAgeHours         int `mapstructure:"max_age_hours" json:"max_age_hours"`
}

// RateLimitConfig approval endpoint limiter settings
type RateLimitConfig struct {
	Requests             int  `mapstructure:"requests" json:"requests"`
	WindowSeconds        int  `mapstructure:"window_seconds" json:"window_seconds"`
	SweepIntervalSeconds int  `mapstructure:"sweep_interval_seconds" json:"sweep_interval_seconds"`
	DisabledInTestMode   bool `mapstructure:"disabled_in_test_mode" json:"disabled_in_test_mode"`
}

// NotifyConfig push notification settings
type NotifyConfig struct {
	Provider string         `mapstructure:"provider" json:"provider"`
	Pushover PushoverConfig `mapstructure:"pushover" json:"pushover"`
	Telegram TelegramConfig `mapstructure:"telegram" json:"telegram"`
	SNS      SNSConfig      `mapstructure:"sns" json:"sns"`
}

// PushoverConfig names the secrets holding Pushover credentials.
type PushoverConfig struct {
	AppTokenSecret string `mapstructure:"app_token_secret" json:"app_token_secret"`
	UserKeySecret  string `mapstructure:"user_key_secret" json:"user_key_secret"`
	APIURL         string `mapstructure:"api_url" json:"api_url"`
}

// TelegramConfig telegram bot settings
type TelegramConfig struct {
	TokenSecret string `mapstructure:"token_secret" json:"token_secret"`
	ChatID      int64  `mapstructure:"chat_id" json:"chat_id"`
}

// SNSConfig AWS SNS topic settings
type SNSConfig struct {
	TopicARN string `mapstructure:"topic_arn" json:"topic_arn"`
}

// SecretsConfig secret store settings
type SecretsConfig struct {
	Provider string          `mapstructure:"provider" json:"provider"`
	AWS      AWSSecretConfig `mapstructure:"aws" json:"aws"`
}

// AWSSecretConfig AWS Secrets Manager settings
type AWSSecretConfig struct {
	Region   string `mapstructure:"region" json:"region"`
	Prefix   string `mapstructure:"prefix" json:"prefix"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
}

// BrowserConfig browser worker settings
type BrowserConfig struct {
	WorkerURL                string `mapstructure:"worker_url" json:"worker_url"`
	TimeoutSeconds           int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	NavigationTimeoutSeconds int    `mapstructure:"navigation_timeout_seconds" json:"navigation_timeout_seconds"`
}

// RunConfig purchase attempt settings
type RunConfig struct {
	// TimeoutSeconds bounds a whole attempt, approval wait included.
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds"`
}

// AuditConfig run trace settings
type AuditConfig struct {
	Dir string `mapstructure:"dir" json:"dir"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	File   string `mapstructure:"file" json:"file"`
	Format string `mapstructure:"format" json:"format"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode: string(policy.ModeDryRun),
		Gateway: GatewayConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			PublicURL:    "http://localhost:8080",
			MaxBodyBytes: 64 << 10,
		},
		Webhook: WebhookConfig{
			TimestampToleranceSeconds: 300,
			SecretName:                "pi_webhook_shared_secret",
			LedgerCapacity:            1000,
		},
		Approval: ApprovalConfig{
			TimeoutSeconds:      600,
			PollIntervalSeconds: 2,
			MaxAgeHours:         24,
		},
		RateLimit: RateLimitConfig{
			Requests:             10,
			WindowSeconds:        60,
			SweepIntervalSeconds: 300,
			DisabledInTestMode:   true,
		},
		Notify: NotifyConfig{
			Provider: "pushover",
			Pushover: PushoverConfig{
				AppTokenSecret: "pushover_app_token",
				UserKeySecret:  "pushover_user_key",
			},
			Telegram: TelegramConfig{
				TokenSecret: "telegram_bot_token",
			},
		},
		Secrets: SecretsConfig{
			Provider: "env",
			AWS: AWSSecretConfig{
				Region: "us-west-2",
			},
		},
		Browser: BrowserConfig{
			WorkerURL:                "http://localhost:3001",
			TimeoutSeconds:           120,
			NavigationTimeoutSeconds: 30,
		},
		Run: RunConfig{
			TimeoutSeconds: 1800,
		},
		Audit: AuditConfig{
			Dir: filepath.Join(ConfigDir(), "traces"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigDir returns the dropwatch config directory
func ConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return filepath.Join(homeDir, ".dropwatch")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from the default path, creating it with defaults if missing.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads config from path, or from ConfigPath when path is empty.
// Environment variables prefixed DROPWATCH_ override file values.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load env file", "file", EnvFile, "error", err)
	}

	configPath := path
	if configPath == "" {
		configPath = ConfigPath()
	}
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := SaveTo(configPath, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("DROPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo saves config to path
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges
// and fills zero values with defaults.
func (c *Config) Validate() error {
	mode, err := policy.ParseMode(c.Mode)
	if err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	c.Mode = string(mode)
	if mode == policy.ModeProd && strings.TrimSpace(c.ConfirmProd) != ConfirmProdValue {
		return fmt.Errorf("mode=prod requires confirm_prod=%s", ConfirmProdValue)
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}
	if c.Gateway.MaxBodyBytes < 0 {
		return fmt.Errorf("gateway.max_body_bytes must not be negative, got %d", c.Gateway.MaxBodyBytes)
	}
	if c.Gateway.MaxBodyBytes == 0 {
		c.Gateway.MaxBodyBytes = 64 << 10
	}
	c.Gateway.PublicURL = strings.TrimRight(strings.TrimSpace(c.Gateway.PublicURL), "/")
	if c.Gateway.PublicURL == "" {
		c.Gateway.PublicURL = fmt.Sprintf("http://localhost:%d", c.Gateway.Port)
	}

	if err := positiveOrDefault("webhook.timestamp_tolerance_seconds", &c.Webhook.TimestampToleranceSeconds, 300); err != nil {
		return err
	}
	if err := positiveOrDefault("webhook.ledger_capacity", &c.Webhook.LedgerCapacity, 1000); err != nil {
		return err
	}
	if strings.TrimSpace(c.Webhook.SecretName) == "" {
		c.Webhook.SecretName = "pi_webhook_shared_secret"
	}

	if err := positiveOrDefault("approval.timeout_seconds", &c.Approval.TimeoutSeconds, 600); err != nil {
		return err
	}
	if err := positiveOrDefault("approval.poll_interval_seconds", &c.Approval.PollIntervalSeconds, 2); err != nil {
		return err
	}
	if err := positiveOrDefault("approval.max_age_hours", &c.Approval.MaxAgeHours, 24); err != nil {
		return err
	}

	if err := positiveOrDefault("rate_limit.requests", &c.RateLimit.Requests, 10); err != nil {
		return err
	}
	if err := positiveOrDefault("rate_limit.window_seconds", &c.RateLimit.WindowSeconds, 60); err != nil {
		return err
	}
	if err := positiveOrDefault("rate_limit.sweep_interval_seconds", &c.RateLimit.SweepIntervalSeconds, 300); err != nil {
		return err
	}

	provider := strings.ToLower(strings.TrimSpace(c.Notify.Provider))
	switch provider {
	case "":
		provider = "log"
	case "pushover", "telegram", "sns", "log":
	default:
		return fmt.Errorf("notify.provider must be one of pushover, telegram, sns, log; got %q", c.Notify.Provider)
	}
	c.Notify.Provider = provider
	if provider == "telegram" && c.Notify.Telegram.ChatID == 0 {
		return fmt.Errorf("notify.telegram.chat_id is required when notify.provider is telegram")
	}
	if provider == "sns" && strings.TrimSpace(c.Notify.SNS.TopicARN) == "" {
		return fmt.Errorf("notify.sns.topic_arn is required when notify.provider is sns")
	}

	secretsProvider := strings.ToLower(strings.TrimSpace(c.Secrets.Provider))
	switch secretsProvider {
	case "":
		secretsProvider = "env"
	case "aws", "env":
	default:
		return fmt.Errorf("secrets.provider must be one of aws, env; got %q", c.Secrets.Provider)
	}
	c.Secrets.Provider = secretsProvider

	if err := positiveOrDefault("browser.timeout_seconds", &c.Browser.TimeoutSeconds, 120); err != nil {
		return err
	}
	if err := positiveOrDefault("browser.navigation_timeout_seconds", &c.Browser.NavigationTimeoutSeconds, 30); err != nil {
		return err
	}

	// An attempt must outlive its approval wait plus one browser call, or an
	// unanswered approval would be cut short by the run timeout.
	minRun := c.Approval.TimeoutSeconds + c.Browser.TimeoutSeconds
	if c.Run.TimeoutSeconds < 0 {
		return fmt.Errorf("run.timeout_seconds must not be negative, got %d", c.Run.TimeoutSeconds)
	}
	if c.Run.TimeoutSeconds == 0 {
		c.Run.TimeoutSeconds = max(1800, minRun+c.Browser.TimeoutSeconds*2)
	}
	if c.Run.TimeoutSeconds <= minRun {
		return fmt.Errorf("run.timeout_seconds (%d) must exceed approval.timeout_seconds + browser.timeout_seconds (%d)",
			c.Run.TimeoutSeconds, minRun)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	format := strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch format {
	case "":
		format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json; got %q", c.Log.Format)
	}
	c.Log.Format = format

	return nil
}

func positiveOrDefault(key string, v *int, def int) error {
	if *v < 0 {
		return fmt.Errorf("%s must not be negative, got %d", key, *v)
	}
	if *v == 0 {
		*v = def
	}
	return nil
}

// EnvMode returns the validated process mode.
func (c *Config) EnvMode() policy.Mode {
	return policy.Mode(c.Mode)
}

func (c *Config) TimestampTolerance() time.Duration {
	return time.Duration(c.Webhook.TimestampToleranceSeconds) * time.Second
}

func (c *Config) ApprovalTimeout() time.Duration {
	return time.Duration(c.Approval.TimeoutSeconds) * time.Second
}

func (c *Config) ApprovalPollInterval() time.Duration {
	return time.Duration(c.Approval.PollIntervalSeconds) * time.Second
}

func (c *Config) ApprovalMaxAge() time.Duration {
	return time.Duration(c.Approval.MaxAgeHours) * time.Hour
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

func (c *Config) RateLimitSweepInterval() time.Duration {
	return time.Duration(c.RateLimit.SweepIntervalSeconds) * time.Second
}

func (c *Config) BrowserTimeout() time.Duration {
	return time.Duration(c.Browser.TimeoutSeconds) * time.Second
}

func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Run.TimeoutSeconds) * time.Second
}

func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Browser.NavigationTimeoutSeconds) * time.Second
}

// RateLimitEnabled reports whether approval endpoints are limited in the process mode.
func (c *Config) RateLimitEnabled() bool {
	return !(c.RateLimit.DisabledInTestMode && c.EnvMode() == policy.ModeTest)
}

// Addr returns the gateway listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}
