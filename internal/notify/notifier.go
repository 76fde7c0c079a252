package notify

import (
	"context"

	"github.com/nholik/rauc-health/internal/report"
)

// Notifier delivers session outcomes to external systems.
type Notifier interface {
	Notify(ctx context.Context, outcome report.Report) error
}

func hostKey(outcome report.Report) string {
	if outcome.Host == "" {
		return "localhost"
	}
	return outcome.Host
}
