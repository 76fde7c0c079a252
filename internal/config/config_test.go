package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(envEnvFile, filepath.Join(dir, "missing.env"))
	return dir
}

func TestLoad_ValidationAndDefaults(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr bool
		want    Config
	}{
		{
			name: "defaults applied",
			env:  map[string]string{},
			want: Defaults(),
		},
		{
			name: "custom timing and runlevel",
			env: map[string]string{
				envTimeout:      "2m",
				envPollInterval: "1s",
				envRunlevel:     "boot",
				envPolicyPath:   "/etc/rauc/rauc-health.toml",
			},
			want: Config{
				PolicyPath:   "/etc/rauc/rauc-health.toml",
				Timeout:      2 * time.Minute,
				PollInterval: time.Second,
				Runlevel:     "boot",
				LogLevel:     defaultLogLevel,
			},
		},
		{
			name: "zero timeout is allowed",
			env:  map[string]string{envTimeout: "0s"},
			want: Config{
				PollInterval: DefaultPollInterval,
				Runlevel:     defaultRunlevel,
				LogLevel:     defaultLogLevel,
			},
		},
		{
			name:    "negative timeout",
			env:     map[string]string{envTimeout: "-1s"},
			wantErr: true,
		},
		{
			name:    "invalid timeout",
			env:     map[string]string{envTimeout: "soon"},
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			env:     map[string]string{envPollInterval: "0s"},
			wantErr: true,
		},
		{
			name:    "invalid poll interval",
			env:     map[string]string{envPollInterval: "nope"},
			wantErr: true,
		},
		{
			name:    "invalid slack webhook url",
			env:     map[string]string{envSlackWebhookURL: "not-a-url"},
			wantErr: true,
		},
		{
			name:    "invalid webhook url",
			env:     map[string]string{envWebhookURL: "hooks.example.com/x"},
			wantErr: true,
		},
		{
			name:    "invalid dry run flag",
			env:     map[string]string{envNotifyDryRun: "maybe"},
			wantErr: true,
		},
		{
			name: "notification and output settings",
			env: map[string]string{
				envSlackWebhookURL: "https://hooks.slack.com/services/T00/B00/XXX",
				envWebhookURL:      "https://hooks.example.com/rauc",
				envWebhookTemplate: `{"host":"{{ .Host }}"}`,
				envNotifyDryRun:    "true",
				envMetricsTextfile: "/var/lib/node_exporter/rauc_health.prom",
				envReportPath:      "/run/rauc-health/report.json",
				envLogLevel:        "debug",
			},
			want: Config{
				Timeout:         DefaultTimeout,
				PollInterval:    DefaultPollInterval,
				Runlevel:        defaultRunlevel,
				LogLevel:        "debug",
				SlackWebhookURL: "https://hooks.slack.com/services/T00/B00/XXX",
				WebhookURL:      "https://hooks.example.com/rauc",
				WebhookTemplate: `{"host":"{{ .Host }}"}`,
				NotifyDryRun:    true,
				MetricsTextfile: "/var/lib/node_exporter/rauc_health.prom",
				ReportPath:      "/run/rauc-health/report.json",
			},
		},
		{
			name: "blank values are treated as unset",
			env:  map[string]string{envTimeout: "   ", envRunlevel: ""},
			want: Defaults(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolateEnv(t)
			for key, value := range tc.env {
				t.Setenv(key, value)
			}

			got, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected config: %+v", got)
			}
		})
	}
}

func TestLoad_EnvFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "rauc-health")

	contents := []byte(`
# /etc/default/rauc-health
RH_TIMEOUT=90s
RH_RUNLEVEL=boot
RH_LOG_LEVEL=warn
`)
	if err := os.WriteFile(envFile, contents, 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv(envEnvFile, envFile)
	t.Setenv(envRunlevel, "default")
	// godotenv sets variables with os.Setenv; clear what the file adds.
	t.Cleanup(func() {
		_ = os.Unsetenv(envTimeout)
		_ = os.Unsetenv(envLogLevel)
	})

	got, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Timeout != 90*time.Second {
		t.Fatalf("timeout not loaded from env file: %s", got.Timeout)
	}
	if got.LogLevel != "warn" {
		t.Fatalf("log level not loaded from env file: %s", got.LogLevel)
	}
	if got.Runlevel != "default" {
		t.Fatalf("runlevel did not prefer environment: %s", got.Runlevel)
	}
}

func TestLoad_UnreadableEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envEnvFile, dir)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when env file is a directory")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.Runlevel = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for blank runlevel")
	}
}
