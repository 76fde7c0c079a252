package runner

import (
	"context"
	"errors"
	"time"

	"github.com/nholik/rauc-health/internal/config"
	"github.com/nholik/rauc-health/internal/health"
	"github.com/nholik/rauc-health/internal/metrics"
	"github.com/nholik/rauc-health/internal/notify"
	"github.com/nholik/rauc-health/internal/openrc"
	"github.com/nholik/rauc-health/internal/report"
	"github.com/nholik/rauc-health/internal/transition"
	"github.com/rs/zerolog"
)

// StatusSource returns the raw service status report.
type StatusSource interface {
	Fetch(ctx context.Context) (string, error)
}

// Marker commits or rejects the booted slot.
type Marker interface {
	MarkGood(ctx context.Context) error
	MarkBad(ctx context.Context) error
}

// Runner polls service status until the required services are started or
// the deadline passes, then marks the slot accordingly.
type Runner struct {
	logger       zerolog.Logger
	policy       health.Policy
	source       StatusSource
	marker       Marker
	timeout      time.Duration
	pollInterval time.Duration
	now          func() time.Time
	sleep        func(time.Duration)
	metrics      *metrics.Metrics
	notifier     notify.Notifier
	store        report.Store
	host         string
	runlevel     string
}

// Option customizes runner behavior.
type Option func(*Runner)

// WithTimeout sets how long required services may take to start.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		r.timeout = timeout
	}
}

// WithPollInterval sets the pause between checks.
func WithPollInterval(interval time.Duration) Option {
	return func(r *Runner) {
		r.pollInterval = interval
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithSleep overrides how the runner waits between checks.
func WithSleep(sleep func(time.Duration)) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// WithMetrics records check and outcome metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithNotifier delivers the outcome once the slot is marked.
func WithNotifier(notifier notify.Notifier) Option {
	return func(r *Runner) {
		r.notifier = notifier
	}
}

// WithReportStore saves the outcome once the slot is marked.
func WithReportStore(store report.Store) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithHost labels reports and notifications.
func WithHost(host string) Option {
	return func(r *Runner) {
		r.host = host
	}
}

// WithRunlevel labels reports with the runlevel being checked.
func WithRunlevel(runlevel string) Option {
	return func(r *Runner) {
		r.runlevel = runlevel
	}
}

// New constructs a Runner for the given policy and collaborators.
func New(logger zerolog.Logger, policy health.Policy, source StatusSource, marker Marker, opts ...Option) *Runner {
	r := &Runner{
		logger:       logger,
		policy:       policy,
		source:       source,
		marker:       marker,
		timeout:      config.DefaultTimeout,
		pollInterval: config.DefaultPollInterval,
		now:          time.Now,
		sleep:        time.Sleep,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run checks service status until the slot is marked good or bad.
//
// A healthy check marks the slot good and returns a confirmed report. When
// the deadline passes with required services still failing, the slot is
// marked bad and a *TimeoutError is returned alongside the report. Status
// fetch and marking failures abort immediately.
func (r *Runner) Run(ctx context.Context) (report.Report, error) {
	if r.source == nil || r.marker == nil {
		return report.Report{}, errors.New("runner requires a status source and a slot marker")
	}

	startedAt := r.now()
	deadline := startedAt.Add(r.timeout)

	r.logger.Info().
		Dur("timeout", r.timeout).
		Dur("poll_interval", r.pollInterval).
		Time("deadline", deadline).
		Str("runlevel", r.runlevel).
		Strs("required", r.policy.Required()).
		Strs("optional", r.policy.Optional()).
		Strs("ignore_exact", r.policy.IgnoreExact()).
		Strs("ignore_prefixes", r.policy.IgnorePrefixes()).
		Msg("waiting for required services")

	var previous []health.FailedService
	for attempt := 1; ; attempt++ {
		verdict, err := r.check(ctx)
		if err != nil {
			return report.Report{}, err
		}
		r.logTransitions(transition.Detect(previous, verdict.Failures))
		previous = verdict.Failures

		if verdict.Healthy() {
			if err := r.marker.MarkGood(ctx); err != nil {
				return report.Report{}, wrapAction("mark-good", err)
			}
			outcome := r.finish(ctx, startedAt, attempt, report.ResultConfirmed, nil)
			r.logger.Info().
				Int("attempts", attempt).
				Dur("elapsed", outcome.Elapsed).
				Msg("all required services started")
			return outcome, nil
		}

		if r.now().Before(deadline) {
			r.logger.Debug().
				Int("attempt", attempt).
				Strs("failing", verdict.Names()).
				Dur("retry_in", r.pollInterval).
				Msg("required services not started yet")
			r.sleep(r.pollInterval)
			continue
		}

		for _, failure := range verdict.Failures {
			r.logger.Error().
				Str("service", failure.Name).
				Str("state", failure.State).
				Msg("required service not started")
		}
		if err := r.marker.MarkBad(ctx); err != nil {
			return report.Report{}, wrapAction("mark-bad", err)
		}
		outcome := r.finish(ctx, startedAt, attempt, report.ResultRolledBack, verdict.Failures)
		return outcome, &TimeoutError{
			Failures: verdict.Failures,
			Elapsed:  outcome.Elapsed,
			Timeout:  r.timeout,
		}
	}
}

func (r *Runner) check(ctx context.Context) (health.Verdict, error) {
	began := r.now()
	text, err := r.source.Fetch(ctx)
	if err != nil {
		r.metrics.IncStatusFetchErrors()
		return health.Verdict{}, &StatusFetchError{Err: err}
	}

	verdict := health.Evaluate(openrc.Parse(text), r.policy)
	r.metrics.ObserveCheck(r.now().Sub(began), len(verdict.Failures))
	return verdict, nil
}

func (r *Runner) logTransitions(transitions []transition.ServiceTransition) {
	for _, change := range transitions {
		var event *zerolog.Event
		switch change.Kind {
		case transition.KindFailing:
			event = r.logger.Warn()
		case transition.KindRecovered:
			event = r.logger.Info()
		default:
			event = r.logger.Debug()
		}
		event.
			Str("service", change.Name).
			Str("transition", string(change.Kind)).
			Str("previous_state", change.PreviousState).
			Str("current_state", change.CurrentState).
			Msg("service transition detected")
	}
}

// finish records the outcome of a marked slot. Reporting failures are
// logged and never change the outcome.
func (r *Runner) finish(ctx context.Context, startedAt time.Time, attempts int, result report.Result, failures []health.FailedService) report.Report {
	finishedAt := r.now()
	outcome := report.Report{
		Host:       r.host,
		Runlevel:   r.runlevel,
		Result:     result,
		Failures:   failures,
		Attempts:   attempts,
		Elapsed:    finishedAt.Sub(startedAt),
		Timeout:    r.timeout,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}

	r.metrics.RecordOutcome(string(result), finishedAt)

	if r.store != nil {
		if err := r.store.Save(ctx, outcome); err != nil {
			r.logger.Error().Err(err).Msg("failed to save outcome report")
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, outcome); err != nil {
			r.logger.Error().Err(err).Str("result", string(result)).Msg("failed to send notification")
		}
	}

	return outcome
}
