// Package config provides configuration loading and validation for Doorman.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation.
//
// Configuration structure:
//   - [telegram]: Bot token, admin chat, transport mode
//   - [tracker]: Time limit and sweep interval
//   - [storage]: Badger database path
//   - [dashboard]: HTTP status server
//   - [workers]: Event worker pool sizing
//   - [logging]: Logging level, format, and output
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax. For example: token = "${BOT_TOKEN}"
package config

// Config represents the main application configuration.
type Config struct {
	Telegram  TelegramConfig  `toml:"telegram"`
	Tracker   TrackerConfig   `toml:"tracker"`
	Storage   StorageConfig   `toml:"storage"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Workers   WorkersConfig   `toml:"workers"`
	Logging   LoggingConfig   `toml:"logging"`
}

// TelegramConfig configures the Telegram connector.
type TelegramConfig struct {
	Token              string `toml:"token"`
	AdminChatID        int64  `toml:"admin_chat_id"`
	Transport          string `toml:"transport"` // polling, webhook
	WebhookURL         string `toml:"webhook_url"`
	WebhookListenAddr  string `toml:"webhook_listen_addr"`
	SendTimeoutSeconds int    `toml:"send_timeout_seconds"`
	NotifyOnJoin       bool   `toml:"notify_on_join"`
}

// TrackerConfig configures the membership expiry tracker.
type TrackerConfig struct {
	TimeLimitSeconds     int `toml:"time_limit_seconds"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// StorageConfig configures the membership store.
type StorageConfig struct {
	Path string `toml:"path"`
}

// DashboardConfig configures the HTTP status dashboard.
type DashboardConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// WorkersConfig configures the event worker pool.
type WorkersConfig struct {
	PoolSize  int `toml:"pool_size"`
	QueueSize int `toml:"queue_size"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}
