package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MEKXH/dropwatch/internal/policy"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "dryrun" {
		t.Errorf("expected Mode=dryrun, got %q", cfg.Mode)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.Gateway.Port)
	}
	if cfg.Webhook.TimestampToleranceSeconds != 300 {
		t.Errorf("expected tolerance 300, got %d", cfg.Webhook.TimestampToleranceSeconds)
	}
	if cfg.ApprovalTimeout() != 10*time.Minute {
		t.Errorf("expected approval timeout 10m, got %s", cfg.ApprovalTimeout())
	}
	if cfg.RateLimit.Requests != 10 || cfg.RateLimitWindow() != time.Minute {
		t.Errorf("unexpected rate limit defaults %+v", cfg.RateLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFromCreatesDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.EnvMode() != policy.ModeDryRun {
		t.Fatalf("expected dryrun, got %s", cfg.EnvMode())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected default config file: %v", err)
	}
	if !strings.Contains(string(data), `"timestamp_tolerance_seconds": 300`) {
		t.Fatalf("expected snake_case keys in saved config:\n%s", data)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	if err := SaveTo(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}
	t.Setenv("DROPWATCH_MODE", "test")
	t.Setenv("DROPWATCH_RATE_LIMIT_REQUESTS", "3")
	t.Setenv("DROPWATCH_NOTIFY_PROVIDER", "log")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.EnvMode() != policy.ModeTest {
		t.Fatalf("expected test mode from env, got %s", cfg.EnvMode())
	}
	if cfg.RateLimit.Requests != 3 {
		t.Fatalf("expected rate limit 3 from env, got %d", cfg.RateLimit.Requests)
	}
	if cfg.RateLimitEnabled() {
		t.Fatalf("expected rate limiting disabled in test mode")
	}
}

func TestLoadFromReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("DROPWATCH_PRODUCT_NAME") })
	if err := os.WriteFile(filepath.Join(dir, EnvFile), []byte("DROPWATCH_PRODUCT_NAME=Fortaleza Blanco\n"), 0600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Product.Name != "Fortaleza Blanco" {
		t.Fatalf("expected product name from env file, got %q", cfg.Product.Name)
	}
}

func TestValidateProdRequiresConfirmation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "PROD"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected prod without confirm_prod to fail")
	}

	cfg.ConfirmProd = "YES"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected confirmed prod to validate: %v", err)
	}
	if cfg.EnvMode() != policy.ModeProd {
		t.Fatalf("expected normalized prod, got %q", cfg.Mode)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(c *Config){
		"mode":          func(c *Config) { c.Mode = "live" },
		"port":          func(c *Config) { c.Gateway.Port = 70000 },
		"log level":     func(c *Config) { c.Log.Level = "trace" },
		"log format":    func(c *Config) { c.Log.Format = "xml" },
		"notify":        func(c *Config) { c.Notify.Provider = "sms" },
		"telegram chat": func(c *Config) { c.Notify.Provider = "telegram" },
		"sns topic":     func(c *Config) { c.Notify.Provider = "sns" },
		"secrets":       func(c *Config) { c.Secrets.Provider = "vault" },
		"negative":      func(c *Config) { c.Approval.TimeoutSeconds = -1 },
		"run timeout":   func(c *Config) { c.Approval.TimeoutSeconds = 3600 },
		"negative run":  func(c *Config) { c.Run.TimeoutSeconds = -5 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidateFillsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Approval.TimeoutSeconds = 0
	cfg.Gateway.PublicURL = "https://drops.example.com/"
	cfg.Notify.Provider = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.Approval.TimeoutSeconds != 600 {
		t.Fatalf("expected default timeout, got %d", cfg.Approval.TimeoutSeconds)
	}
	if cfg.Gateway.PublicURL != "https://drops.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Gateway.PublicURL)
	}
	if cfg.Notify.Provider != "log" {
		t.Fatalf("expected log provider fallback, got %q", cfg.Notify.Provider)
	}
}

func TestValidateRunTimeoutCoversApprovalWait(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.RunTimeout() <= cfg.ApprovalTimeout()+cfg.BrowserTimeout() {
		t.Fatalf("run timeout %s does not cover approval %s", cfg.RunTimeout(), cfg.ApprovalTimeout())
	}

	cfg = DefaultConfig()
	cfg.Approval.TimeoutSeconds = 3600
	cfg.Run.TimeoutSeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if got, want := cfg.Run.TimeoutSeconds, 3600+3*120; got != want {
		t.Fatalf("expected derived run timeout %d, got %d", want, got)
	}

	cfg = DefaultConfig()
	cfg.Approval.TimeoutSeconds = 3600
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "run.timeout_seconds") {
		t.Fatalf("expected run timeout error, got %v", err)
	}
}
