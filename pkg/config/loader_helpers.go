package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Strings and durations override
// when non-zero; booleans only when the key is present in raw.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Server.Listen != "" {
		base.Server.Listen = override.Server.Listen
	}
	if override.Server.PublicURL != "" {
		base.Server.PublicURL = override.Server.PublicURL
	}
	if override.Server.ReadTimeout != 0 {
		base.Server.ReadTimeout = override.Server.ReadTimeout
	}
	if override.Server.WriteTimeout != 0 {
		base.Server.WriteTimeout = override.Server.WriteTimeout
	}
	if override.Server.ShutdownTimeout != 0 {
		base.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}
	if override.Server.SessionTTL != 0 {
		base.Server.SessionTTL = override.Server.SessionTTL
	}
	if boolFieldSet(raw, "server", "secure_cookies") {
		base.Server.SecureCookies = override.Server.SecureCookies
	}
	if override.Server.LoginAttemptsPerMinute != 0 {
		base.Server.LoginAttemptsPerMinute = override.Server.LoginAttemptsPerMinute
	}
	if override.Server.LoginBurst != 0 {
		base.Server.LoginBurst = override.Server.LoginBurst
	}
	if override.Server.MaxUploadBytes != 0 {
		base.Server.MaxUploadBytes = override.Server.MaxUploadBytes
	}

	if override.Backend.Driver != "" {
		base.Backend.Driver = override.Backend.Driver
	}
	if override.Backend.URL != "" {
		base.Backend.URL = override.Backend.URL
	}
	if override.Backend.AnonKey != "" {
		base.Backend.AnonKey = override.Backend.AnonKey
	}
	if override.Backend.Timeout != 0 {
		base.Backend.Timeout = override.Backend.Timeout
	}
	if override.Backend.Bucket != "" {
		base.Backend.Bucket = override.Backend.Bucket
	}

	if override.Storage.DataDir != "" {
		base.Storage.DataDir = override.Storage.DataDir
	}
	if override.Storage.DatabasePath != "" {
		base.Storage.DatabasePath = override.Storage.DatabasePath
	}
	if override.Storage.MediaDir != "" {
		base.Storage.MediaDir = override.Storage.MediaDir
	}

	if override.Search.QuietPeriod != 0 {
		base.Search.QuietPeriod = override.Search.QuietPeriod
	}
	if boolFieldSet(raw, "search", "min_length") {
		base.Search.MinLength = override.Search.MinLength
	}

	if override.Notify.NATS.URL != "" {
		base.Notify.NATS.URL = override.Notify.NATS.URL
	}
	if override.Notify.NATS.Subject != "" {
		base.Notify.NATS.Subject = override.Notify.NATS.Subject
	}
	if override.Notify.Slack.WebhookURL != "" {
		base.Notify.Slack.WebhookURL = override.Notify.Slack.WebhookURL
	}
	if override.Notify.Slack.Channel != "" {
		base.Notify.Slack.Channel = override.Notify.Slack.Channel
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if boolFieldSet(raw, "logging", "dev") {
		base.Logging.Dev = override.Logging.Dev
	}

	if boolFieldSet(raw, "tracing", "enabled") {
		base.Tracing.Enabled = override.Tracing.Enabled
	}
	if override.Tracing.ServiceName != "" {
		base.Tracing.ServiceName = override.Tracing.ServiceName
	}
}

func boolFieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
