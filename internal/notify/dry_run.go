package notify

import (
	"context"

	"github.com/nholik/rauc-health/internal/report"
	"github.com/rs/zerolog"
)

// DryRunNotifier logs outcomes without sending notifications.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// suppressed counts the downstream notifiers that would have been called.
func (n *DryRunNotifier) suppressed() int {
	switch inner := n.inner.(type) {
	case nil:
		return 0
	case *MultiNotifier:
		return inner.Len()
	default:
		return 1
	}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, outcome report.Report) error {
	event := n.logger.Info().
		Int("suppressed", n.suppressed()).
		Str("host", hostKey(outcome)).
		Str("result", string(outcome.Result)).
		Int("attempts", outcome.Attempts).
		Dur("elapsed", outcome.Elapsed)
	if len(outcome.Failures) > 0 {
		names := make([]string, 0, len(outcome.Failures))
		for _, failure := range outcome.Failures {
			names = append(names, failure.Name)
		}
		event = event.Strs("failed_services", names)
	}
	event.Msg("[DRY-RUN] Would notify")
	return nil
}
