package notify

import (
	"context"

	"github.com/nholik/rauc-health/internal/report"
)

// MultiNotifier fans out notifications to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that dispatches to all provided notifiers.
// Nil entries are skipped.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	filtered := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier == nil {
			continue
		}
		filtered = append(filtered, notifier)
	}
	return &MultiNotifier{notifiers: filtered}
}

// Len reports how many notifiers receive outcomes.
func (m *MultiNotifier) Len() int {
	return len(m.notifiers)
}

// Notify implements Notifier. Every notifier is attempted; the first error
// is returned.
func (m *MultiNotifier) Notify(ctx context.Context, outcome report.Report) error {
	var firstErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Notify(ctx, outcome); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
