package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load loads the configuration from a TOML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Validate checks the configuration for fatal problems. A non-empty result
// means the process must refuse to start.
func (c *Config) Validate() []error {
	var errors []error

	if c.Telegram.Token == "" {
		errors = append(errors, fmt.Errorf("telegram.token is required"))
	} else if err := validateTelegramToken(c.Telegram.Token); err != nil {
		errors = append(errors, err)
	}

	if c.Telegram.AdminChatID == 0 {
		errors = append(errors, fmt.Errorf("telegram.admin_chat_id is required"))
	}

	switch c.Telegram.Transport {
	case "polling":
	case "webhook":
		if c.Telegram.WebhookURL == "" {
			errors = append(errors, fmt.Errorf("telegram.webhook_url is required when transport is 'webhook'"))
		}
	default:
		errors = append(errors, fmt.Errorf("invalid telegram.transport: %s (expected: polling, webhook)", c.Telegram.Transport))
	}

	if c.Tracker.TimeLimitSeconds <= 0 {
		errors = append(errors, fmt.Errorf("tracker.time_limit_seconds must be positive, got %d", c.Tracker.TimeLimitSeconds))
	}
	if c.Tracker.SweepIntervalSeconds <= 0 {
		errors = append(errors, fmt.Errorf("tracker.sweep_interval_seconds must be positive, got %d", c.Tracker.SweepIntervalSeconds))
	}

	if c.Storage.Path == "" {
		errors = append(errors, fmt.Errorf("storage.path is required"))
	}

	if c.Dashboard.Enabled && c.Dashboard.Addr == "" {
		errors = append(errors, fmt.Errorf("dashboard.addr is required when dashboard is enabled"))
	}

	if c.Workers.PoolSize <= 0 {
		errors = append(errors, fmt.Errorf("workers.pool_size must be positive, got %d", c.Workers.PoolSize))
	}
	if c.Workers.QueueSize <= 0 {
		errors = append(errors, fmt.Errorf("workers.queue_size must be positive, got %d", c.Workers.QueueSize))
	}

	if c.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}

	if c.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	return errors
}

func validateTelegramToken(token string) error {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return fmt.Errorf("telegram token has invalid format (expected: <bot_id>:<token>)")
	}

	botID := parts[0]
	if len(botID) < 3 || len(botID) > 15 {
		return fmt.Errorf("telegram token has invalid bot ID length (expected 3-15 digits, got %d)", len(botID))
	}
	for _, r := range botID {
		if r < '0' || r > '9' {
			return fmt.Errorf("telegram token has invalid bot ID (expected digits only)")
		}
	}

	if len(parts[1]) < 10 || len(parts[1]) > 50 {
		return fmt.Errorf("telegram token has invalid token length (expected 10-50 characters, got %d)", len(parts[1]))
	}

	return nil
}

// applyDefaults fills in defaults for unset fields.
func applyDefaults(c *Config) {
	if c.Telegram.Transport == "" {
		c.Telegram.Transport = "polling"
	}
	if c.Telegram.SendTimeoutSeconds == 0 {
		c.Telegram.SendTimeoutSeconds = 10
	}
	if c.Telegram.WebhookListenAddr == "" {
		c.Telegram.WebhookListenAddr = ":8443"
	}

	if c.Tracker.TimeLimitSeconds == 0 {
		c.Tracker.TimeLimitSeconds = 120
	}
	if c.Tracker.SweepIntervalSeconds == 0 {
		c.Tracker.SweepIntervalSeconds = 120
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "./data/doorman"
	}

	if c.Dashboard.Addr == "" {
		c.Dashboard.Addr = ":10000"
	}

	if c.Workers.PoolSize == 0 {
		c.Workers.PoolSize = 5
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = 100
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// expandEnvVars expands ${VAR} and ${VAR:default} references.
func expandEnvVars(c *Config) {
	c.Telegram.Token = expandEnv(c.Telegram.Token)
	c.Telegram.WebhookURL = expandEnv(c.Telegram.WebhookURL)
	c.Storage.Path = expandEnv(c.Storage.Path)
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val
		}
		return parts[1]
	}

	return os.Getenv(content)
}
