package main

import (
	"fmt"
	"time"

	"github.com/nholik/rauc-health/internal/config"
	"github.com/nholik/rauc-health/internal/logging"
	"github.com/nholik/rauc-health/internal/metrics"
	"github.com/nholik/rauc-health/internal/notify"
	"github.com/nholik/rauc-health/internal/openrc"
	"github.com/nholik/rauc-health/internal/rauc"
	"github.com/nholik/rauc-health/internal/report"
	"github.com/nholik/rauc-health/internal/runner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type checkFlags struct {
	policyPath   string
	timeout      time.Duration
	pollInterval time.Duration
	runlevel     string

	// Integer spellings accepted by existing init scripts.
	timeoutSeconds     uint64
	pollIntervalMillis uint64
}

func (a *app) rootCmd() *cobra.Command {
	var (
		logLevel string
		cfg      config.Config
		loadErr  error
		logger   zerolog.Logger
	)

	root := &cobra.Command{
		Use:           "rauc-health",
		Short:         "Confirm or reject a freshly booted RAUC slot based on service health",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A load failure is only fatal for check-openrc.
			cfg, loadErr = config.Load()
			if loadErr != nil {
				cfg = config.Defaults()
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			logger = logging.NewWriter(a.logOut, cfg.LogLevel)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return wrapConfig(err)
	})

	markGood := &cobra.Command{
		Use:   "mark-good",
		Short: "Mark the booted slot as good",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			warnIgnoredConfig(logger, loadErr)
			marker := rauc.NewMarker(logger, a.runner)
			if err := marker.MarkGood(cmd.Context()); err != nil {
				return &runner.ActionError{Action: "mark-good", Err: err}
			}
			return nil
		},
	}

	markBad := &cobra.Command{
		Use:   "mark-bad",
		Short: "Mark the booted slot as bad",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			warnIgnoredConfig(logger, loadErr)
			marker := rauc.NewMarker(logger, a.runner)
			if err := marker.MarkBad(cmd.Context()); err != nil {
				return &runner.ActionError{Action: "mark-bad", Err: err}
			}
			return nil
		},
	}

	var flags checkFlags
	checkOpenRC := &cobra.Command{
		Use:   "check-openrc",
		Short: "Wait for required OpenRC services, then mark the slot good or bad",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if loadErr != nil {
				return wrapConfig(loadErr)
			}
			applyCheckFlags(cmd, &cfg, flags)
			return a.checkOpenRC(cmd, logger, cfg, flags)
		},
	}
	checkOpenRC.Flags().StringVar(&flags.policyPath, "config", "", "health policy file (TOML, or YAML by extension)")
	checkOpenRC.Flags().DurationVar(&flags.timeout, "timeout", config.DefaultTimeout, "how long required services may take to start")
	checkOpenRC.Flags().DurationVar(&flags.pollInterval, "poll-interval", config.DefaultPollInterval, "pause between status checks")
	checkOpenRC.Flags().StringVar(&flags.runlevel, "runlevel", "", "OpenRC runlevel to inspect (default from config, then \"default\")")
	checkOpenRC.Flags().Uint64Var(&flags.timeoutSeconds, "timeout-secunds", 0, "timeout in whole seconds")
	checkOpenRC.Flags().Uint64Var(&flags.pollIntervalMillis, "poll-interval-ms", 0, "poll interval in milliseconds")
	_ = checkOpenRC.Flags().MarkHidden("timeout-secunds")
	_ = checkOpenRC.Flags().MarkHidden("poll-interval-ms")

	root.AddCommand(markGood, markBad, checkOpenRC)
	return root
}

func warnIgnoredConfig(logger zerolog.Logger, err error) {
	if err == nil {
		return
	}
	logger.Warn().Err(err).Msg("configuration is invalid; marking with defaults")
}

// applyCheckFlags overrides loaded settings with flags set on the command
// line. The duration flags win over their integer spellings.
func applyCheckFlags(cmd *cobra.Command, cfg *config.Config, flags checkFlags) {
	if cmd.Flags().Changed("config") {
		cfg.PolicyPath = flags.policyPath
	}
	if cmd.Flags().Changed("timeout-secunds") {
		cfg.Timeout = time.Duration(flags.timeoutSeconds) * time.Second
	}
	if cmd.Flags().Changed("poll-interval-ms") {
		cfg.PollInterval = time.Duration(flags.pollIntervalMillis) * time.Millisecond
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = flags.timeout
	}
	if cmd.Flags().Changed("poll-interval") {
		cfg.PollInterval = flags.pollInterval
	}
}

func (a *app) checkOpenRC(cmd *cobra.Command, logger zerolog.Logger, cfg config.Config, flags checkFlags) error {
	healthCfg, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return wrapConfig(err)
	}

	runlevel := cfg.Runlevel
	if healthCfg.Runlevel != "" {
		runlevel = healthCfg.Runlevel
	}
	if cmd.Flags().Changed("runlevel") {
		runlevel = flags.runlevel
	}
	cfg.Runlevel = runlevel
	if err := cfg.Validate(); err != nil {
		return wrapConfig(err)
	}

	notifier, err := buildNotifier(logger, cfg)
	if err != nil {
		return wrapConfig(err)
	}

	host, err := a.hostname()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to resolve hostname")
	}

	m := metrics.New()
	opts := []runner.Option{
		runner.WithTimeout(cfg.Timeout),
		runner.WithPollInterval(cfg.PollInterval),
		runner.WithSleep(a.sleep),
		runner.WithMetrics(m),
		runner.WithHost(host),
	}
	if notifier != nil {
		opts = append(opts, runner.WithNotifier(notifier))
	}
	if cfg.ReportPath != "" {
		opts = append(opts, runner.WithReportStore(report.NewFileStore(cfg.ReportPath, logger)))
	}

	source := openrc.NewStatusSource(a.runner, runlevel)
	opts = append(opts, runner.WithRunlevel(source.Runlevel()))

	r := runner.New(logger,
		healthCfg.Policy(),
		source,
		rauc.NewMarker(logger, a.runner),
		opts...,
	)

	_, runErr := r.Run(cmd.Context())

	if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
		logger.Error().Err(err).Str("path", cfg.MetricsTextfile).Msg("failed to write metrics textfile")
	}

	return runErr
}

func buildNotifier(logger zerolog.Logger, cfg config.Config) (notify.Notifier, error) {
	notifiers := make([]notify.Notifier, 0, 2)
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(logger, cfg.SlackWebhookURL))
	}
	webhook, err := notify.NewWebhookNotifier(logger, cfg.WebhookURL, cfg.WebhookTemplate)
	if err != nil {
		return nil, fmt.Errorf("webhook notifier: %w", err)
	}
	if webhook != nil {
		notifiers = append(notifiers, webhook)
	}
	if len(notifiers) == 0 {
		return nil, nil
	}

	var notifier notify.Notifier = notify.NewMultiNotifier(notifiers...)
	if cfg.NotifyDryRun {
		notifier = notify.NewDryRunNotifier(logger, notifier)
	}
	return notifier, nil
}
