// Package config loads the controller's own YAML-backed application
// configuration: where the server's working directory and schedule data
// live, the sweep/restart/log-pipeline timings, and webhook delivery
// tuning. This is distinct from internal/configfile, which edits the
// managed game server's own config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the controller's application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Restart   RestartConfig   `yaml:"restart"`
	LogPipe   LogPipeConfig   `yaml:"log_pipeline"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

// ServerConfig locates the managed game server on disk.
type ServerConfig struct {
	// WorkingDir is the server's own working directory, used to resolve
	// the Data/ schedule directory and the default config-file path.
	WorkingDir string `yaml:"working_dir"`

	// ConfigFilePath is the server's line-oriented key=value config file.
	ConfigFilePath string `yaml:"config_file_path"`

	// FallbackLogPath is used when the config file's own "log=" key can't
	// be read.
	FallbackLogPath string `yaml:"fallback_log_path"`
}

// SchedulerConfig tunes the periodic sweep.
type SchedulerConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	LeadWindow    time.Duration `yaml:"lead_window"`
	MissedWindow  time.Duration `yaml:"missed_window"`
}

// RestartConfig tunes the Smart Restart Machine.
type RestartConfig struct {
	ChatCommand          string        `yaml:"chat_command"`
	WarningMinutes       int           `yaml:"warning_minutes"`
	PendingCheckInterval time.Duration `yaml:"pending_check_interval"`
	PendingTimeout       time.Duration `yaml:"pending_timeout"`
	StabilizeDelay       time.Duration `yaml:"stabilize_delay"`
	CompletedDelay       time.Duration `yaml:"completed_delay"`
}

// LogPipeConfig tunes the log tailer.
type LogPipeConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// WebhookConfig tunes outbound activation-notice delivery.
type WebhookConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

// Load reads and parses the config file at path, starting from defaults
// and overlaying whatever the file specifies.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the default
// configuration if the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return Load(path)
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			WorkingDir: ".",
		},
		Scheduler: SchedulerConfig{
			SweepInterval: 30 * time.Second,
			LeadWindow:    5 * time.Minute,
			MissedWindow:  5 * time.Minute,
		},
		Restart: RestartConfig{
			ChatCommand:          "say",
			WarningMinutes:       5,
			PendingCheckInterval: 30 * time.Second,
			PendingTimeout:       10 * time.Minute,
			StabilizeDelay:       2 * time.Second,
			CompletedDelay:       5 * time.Second,
		},
		LogPipe: LogPipeConfig{
			PollInterval:  2 * time.Second,
			WatchDebounce: 100 * time.Millisecond,
		},
		Webhook: WebhookConfig{
			Timeout:    10 * time.Second,
			RetryCount: 3,
		},
	}
}

// Diff compares two configs and returns human-readable descriptions of
// what changed, for reload support.
func Diff(old, updated *Config) []string {
	var changes []string

	if old.Scheduler.SweepInterval != updated.Scheduler.SweepInterval {
		changes = append(changes, fmt.Sprintf("scheduler.sweep_interval: %s -> %s", old.Scheduler.SweepInterval, updated.Scheduler.SweepInterval))
	}
	if old.Restart.WarningMinutes != updated.Restart.WarningMinutes {
		changes = append(changes, fmt.Sprintf("restart.warning_minutes: %d -> %d", old.Restart.WarningMinutes, updated.Restart.WarningMinutes))
	}
	if old.Restart.ChatCommand != updated.Restart.ChatCommand {
		changes = append(changes, fmt.Sprintf("restart.chat_command: %s -> %s", old.Restart.ChatCommand, updated.Restart.ChatCommand))
	}
	if old.Restart.PendingTimeout != updated.Restart.PendingTimeout {
		changes = append(changes, fmt.Sprintf("restart.pending_timeout: %s -> %s", old.Restart.PendingTimeout, updated.Restart.PendingTimeout))
	}
	if old.LogPipe.PollInterval != updated.LogPipe.PollInterval {
		changes = append(changes, fmt.Sprintf("log_pipeline.poll_interval: %s -> %s", old.LogPipe.PollInterval, updated.LogPipe.PollInterval))
	}
	if old.Webhook.URL != updated.Webhook.URL {
		changes = append(changes, fmt.Sprintf("webhook.url: %s -> %s", old.Webhook.URL, updated.Webhook.URL))
	}
	if old.Webhook.RetryCount != updated.Webhook.RetryCount {
		changes = append(changes, fmt.Sprintf("webhook.retry_count: %d -> %d", old.Webhook.RetryCount, updated.Webhook.RetryCount))
	}

	return changes
}

func defaultConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

// DefaultConfigPath returns the default XDG-compliant config file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "raceserver-controller", "config.yaml")
}
