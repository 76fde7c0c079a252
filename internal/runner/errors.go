package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/nholik/rauc-health/internal/health"
)

// StatusFetchError reports that the service status could not be obtained.
// The loop aborts without marking the slot.
type StatusFetchError struct {
	Err error
}

func (e *StatusFetchError) Error() string {
	return fmt.Sprintf("failed to fetch service status: %v", e.Err)
}

func (e *StatusFetchError) Unwrap() error {
	return e.Err
}

// ActionError reports that marking the slot failed.
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned after the slot was marked bad because required
// services were still failing when the deadline passed.
type TimeoutError struct {
	Failures []health.FailedService
	Elapsed  time.Duration
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, failure.Name+"="+failure.State)
	}
	return fmt.Sprintf("OpenRC health check failed after %s (timeout %s): %s",
		e.Elapsed.Round(time.Millisecond), e.Timeout, strings.Join(parts, ", "))
}

func wrapAction(action string, err error) error {
	if err == nil {
		return nil
	}
	return &ActionError{Action: action, Err: err}
}
