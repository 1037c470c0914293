package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend driver names.
const (
	DriverHosted = "hosted"
	DriverLocal  = "local"
)

// Config represents the complete site configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig configures the HTTP listener and admin sessions.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	PublicURL       string        `yaml:"public_url"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	SecureCookies   bool          `yaml:"secure_cookies"`
	// LoginAttemptsPerMinute limits password attempts per client address.
	LoginAttemptsPerMinute int   `yaml:"login_attempts_per_minute"`
	LoginBurst             int   `yaml:"login_burst"`
	MaxUploadBytes         int64 `yaml:"max_upload_bytes"`
}

// BackendConfig selects and configures the record/object/auth driver.
type BackendConfig struct {
	// Driver is "hosted", "local" or empty to pick hosted when credentials
	// are present.
	Driver  string        `yaml:"driver"`
	URL     string        `yaml:"url"`
	AnonKey string        `yaml:"anon_key"`
	Timeout time.Duration `yaml:"timeout"`
	Bucket  string        `yaml:"bucket"`
}

// StorageConfig places the local driver's files.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	DatabasePath string `yaml:"database_path"`
	MediaDir     string `yaml:"media_dir"`
}

// SearchConfig tunes the live search.
type SearchConfig struct {
	QuietPeriod time.Duration `yaml:"quiet_period"`
	MinLength   int           `yaml:"min_length"`
}

// NotifyConfig configures content change notifications
type NotifyConfig struct {
	NATS  NATSConfig  `yaml:"nats"`
	Slack SlackConfig `yaml:"slack"`
}

// NATSConfig configures the NATS publisher. Empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SlackConfig configures Slack webhook notifications
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Dev switches to console output and enables verbose diagnostics.
	Dev bool `yaml:"dev"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:                 "127.0.0.1:8080",
			ReadTimeout:            15 * time.Second,
			WriteTimeout:           60 * time.Second,
			ShutdownTimeout:        10 * time.Second,
			SessionTTL:             12 * time.Hour,
			LoginAttemptsPerMinute: 10,
			LoginBurst:             5,
			MaxUploadBytes:         6 << 20,
		},
		Backend: BackendConfig{
			Timeout: 20 * time.Second,
			Bucket:  "speakers_photo",
		},
		Storage: StorageConfig{
			DataDir: "~/.mlf",
		},
		Search: SearchConfig{
			QuietPeriod: 300 * time.Millisecond,
			MinLength:   2,
		},
		Notify: NotifyConfig{
			NATS: NATSConfig{Subject: "mlf.content"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			ServiceName: "mlf",
		},
	}
}

// Load loads configuration from default locations with proper precedence:
// defaults, ~/.mlf/config.yaml, ./.mlf/config.yaml, then environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configEnv := loadConfigEnvVars()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".mlf", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectConfigPath := filepath.Join(".", ".mlf", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg, configEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	configEnv := loadConfigEnvVars()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg, configEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverridesForTest exposes env override logic for tests without file I/O.
func ApplyEnvOverridesForTest(cfg *Config) {
	applyEnvOverrides(cfg, nil)
}

// applyEnvOverrides applies environment variable overrides. Values from
// .env files are used only when the process environment lacks the key.
func applyEnvOverrides(cfg *Config, configEnv map[string]string) {
	lookup := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		for _, k := range keys {
			if v := strings.TrimSpace(configEnv[k]); v != "" {
				return v
			}
		}
		return ""
	}

	if v := lookup("MLF_STORE_URL", "SUPABASE_URL", "VITE_SUPABASE_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := lookup("MLF_STORE_ANON_KEY", "SUPABASE_ANON_KEY", "VITE_SUPABASE_ANON_KEY"); v != "" {
		cfg.Backend.AnonKey = v
	}
	if v := lookup("MLF_BACKEND_DRIVER"); v != "" {
		cfg.Backend.Driver = strings.ToLower(v)
	}
	if v := lookup("MLF_STORAGE_BUCKET"); v != "" {
		cfg.Backend.Bucket = v
	}

	if v := lookup("MLF_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := lookup("MLF_PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = v
	}
	if v := lookup("MLF_SECURE_COOKIES"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.Server.SecureCookies = b
		}
	}
	if v := lookup("MLF_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.SessionTTL = d
		}
	}

	if v := lookup("MLF_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := lookup("MLF_DATABASE_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}

	if v := lookup("MLF_NATS_URL"); v != "" {
		cfg.Notify.NATS.URL = v
	}
	if v := lookup("MLF_SLACK_WEBHOOK_URL"); v != "" {
		cfg.Notify.Slack.WebhookURL = v
	}

	if v := lookup("MLF_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := lookup("MLF_DEV"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.Logging.Dev = b
		}
	}
	if v := lookup("MLF_TRACING"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.Tracing.Enabled = b
		}
	}
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}

// ResolvedDriver returns the backend driver to run. Without an explicit
// choice the hosted driver is used when both credentials are present.
func (c *Config) ResolvedDriver() string {
	if d := strings.ToLower(strings.TrimSpace(c.Backend.Driver)); d != "" {
		return d
	}
	if c.HostedConfigured() {
		return DriverHosted
	}
	return DriverLocal
}

// HostedConfigured reports whether both hosted credentials are set.
func (c *Config) HostedConfigured() bool {
	return strings.TrimSpace(c.Backend.URL) != "" && strings.TrimSpace(c.Backend.AnonKey) != ""
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend.Driver)) {
	case "", DriverHosted, DriverLocal:
	default:
		return fmt.Errorf("invalid backend driver: %s (valid: hosted, local)", c.Backend.Driver)
	}
	if raw := strings.TrimSpace(c.Backend.URL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid backend url: %q (must be an http(s) URL)", raw)
		}
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive")
	}
	if c.Server.LoginAttemptsPerMinute <= 0 || c.Server.LoginBurst <= 0 {
		return fmt.Errorf("login rate limit must be positive")
	}
	if c.Search.MinLength < 1 {
		return fmt.Errorf("search.min_length must be at least 1")
	}
	if c.Search.QuietPeriod <= 0 {
		return fmt.Errorf("search.quiet_period must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}

// ValidationWarnings returns non-fatal warnings about the configuration.
// Missing hosted credentials only degrade the site; they never stop it.
func (c *Config) ValidationWarnings() []string {
	var warnings []string

	if c.ResolvedDriver() == DriverHosted && !c.HostedConfigured() {
		warnings = append(warnings, "Hosted store credentials are missing. Set MLF_STORE_URL and MLF_STORE_ANON_KEY (or SUPABASE_URL and SUPABASE_ANON_KEY); remote calls will fail until then.")
	}
	if c.ResolvedDriver() == DriverLocal && strings.TrimSpace(c.Backend.Driver) == "" {
		warnings = append(warnings, "MLF_STORE_URL and MLF_STORE_ANON_KEY are not set; using the local SQLite store.")
	}
	if c.Backend.AnonKey != "" && os.Getenv("MLF_STORE_ANON_KEY") == "" && os.Getenv("SUPABASE_ANON_KEY") == "" {
		warnings = append(warnings, "SECURITY: Store API key is stored in config file. Consider using MLF_STORE_ANON_KEY environment variable instead.")
	}
	if c.Notify.Slack.WebhookURL != "" && os.Getenv("MLF_SLACK_WEBHOOK_URL") == "" {
		warnings = append(warnings, "SECURITY: Slack webhook URL is stored in config file. Consider using MLF_SLACK_WEBHOOK_URL environment variable instead.")
	}
	if !c.Server.SecureCookies && !isLoopbackListen(c.Server.Listen) {
		warnings = append(warnings, "SECURITY: Admin session cookies are not marked Secure while listening on a non-loopback address. Set server.secure_cookies behind TLS.")
	}
	return warnings
}

func isLoopbackListen(listen string) bool {
	host := listen
	if i := strings.LastIndex(listen, ":"); i >= 0 {
		host = listen[:i]
	}
	host = strings.Trim(host, "[]")
	return host == "127.0.0.1" || host == "localhost" || host == "::1"
}

// loadConfigEnvVars reads ~/.mlf/config.env and ./.env. Later files win.
func loadConfigEnvVars() map[string]string {
	vars := make(map[string]string)
	var paths []string
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".mlf", "config.env"))
	}
	paths = append(paths, ".env")

	for _, path := range paths {
		env, err := godotenv.Read(path)
		if err != nil {
			continue
		}
		for k, v := range env {
			vars[k] = v
		}
	}
	return vars
}
