package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envEnvFile         = "RH_ENV_FILE"
	envPolicyPath      = "RH_CONFIG"
	envTimeout         = "RH_TIMEOUT"
	envPollInterval    = "RH_POLL_INTERVAL"
	envRunlevel        = "RH_RUNLEVEL"
	envLogLevel        = "RH_LOG_LEVEL"
	envSlackWebhookURL = "RH_SLACK_WEBHOOK_URL"
	envWebhookURL      = "RH_WEBHOOK_URL"
	envWebhookTemplate = "RH_WEBHOOK_TEMPLATE"
	envNotifyDryRun    = "RH_NOTIFY_DRY_RUN"
	envMetricsTextfile = "RH_METRICS_TEXTFILE"
	envReportPath      = "RH_REPORT_PATH"
)

const (
	// DefaultTimeout is how long required services may take to start.
	DefaultTimeout = 30 * time.Second
	// DefaultPollInterval is the pause between status checks.
	DefaultPollInterval = 500 * time.Millisecond
)

const (
	defaultEnvFile  = "/etc/default/rauc-health"
	defaultRunlevel = "default"
	defaultLogLevel = "info"
)

// Config describes runtime settings loaded from the environment.
type Config struct {
	PolicyPath      string
	Timeout         time.Duration
	PollInterval    time.Duration
	Runlevel        string
	LogLevel        string
	SlackWebhookURL string
	WebhookURL      string
	WebhookTemplate string
	NotifyDryRun    bool
	MetricsTextfile string
	ReportPath      string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Config {
	return Config{
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		Runlevel:     defaultRunlevel,
		LogLevel:     defaultLogLevel,
	}
}

// Load reads configuration from environment variables and an optional env
// file (RH_ENV_FILE, default /etc/default/rauc-health). Variables already
// present in the environment take precedence over the file.
func Load() (Config, error) {
	envFile := defaultEnvFile
	if value, ok := lookupTrimmed(envEnvFile); ok {
		envFile = value
	}
	if err := loadDotEnvIfPresent(envFile); err != nil {
		return Config{}, &Error{Op: "read", Path: envFile, Err: err}
	}

	cfg := Defaults()

	if value, ok := lookupTrimmed(envPolicyPath); ok {
		cfg.PolicyPath = value
	}

	if value, ok := lookupTrimmed(envTimeout); ok {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envTimeout, err)
		}
		cfg.Timeout = timeout
	}

	if value, ok := lookupTrimmed(envPollInterval); ok {
		interval, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envPollInterval, err)
		}
		cfg.PollInterval = interval
	}

	if value, ok := lookupTrimmed(envRunlevel); ok {
		cfg.Runlevel = value
	}

	if value, ok := lookupTrimmed(envLogLevel); ok {
		cfg.LogLevel = value
	}

	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}

	if value, ok := lookupTrimmed(envWebhookURL); ok {
		cfg.WebhookURL = value
	}

	if value, ok := os.LookupEnv(envWebhookTemplate); ok {
		cfg.WebhookTemplate = value
	}

	if value, ok := lookupTrimmed(envNotifyDryRun); ok {
		dryRun, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envNotifyDryRun, err)
		}
		cfg.NotifyDryRun = dryRun
	}

	if value, ok := lookupTrimmed(envMetricsTextfile); ok {
		cfg.MetricsTextfile = value
	}

	if value, ok := lookupTrimmed(envReportPath); ok {
		cfg.ReportPath = value
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks value ranges. It is called again after command-line
// overrides are applied.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}
	if strings.TrimSpace(c.Runlevel) == "" {
		return errors.New("runlevel must not be empty")
	}
	if c.SlackWebhookURL != "" {
		if err := validateURL(c.SlackWebhookURL, envSlackWebhookURL); err != nil {
			return err
		}
	}
	if c.WebhookURL != "" {
		if err := validateURL(c.WebhookURL, envWebhookURL); err != nil {
			return err
		}
	}
	return nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
