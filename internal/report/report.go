package report

import (
	"context"
	"time"

	"github.com/nholik/rauc-health/internal/health"
)

// Result is the terminal state of a health check session.
type Result string

const (
	ResultConfirmed  Result = "confirmed"
	ResultRolledBack Result = "rolled_back"
)

// Report describes how a health check session ended.
type Report struct {
	Host       string                 `json:"host,omitempty"`
	Runlevel   string                 `json:"runlevel,omitempty"`
	Result     Result                 `json:"result"`
	Failures   []health.FailedService `json:"failures"`
	Attempts   int                    `json:"attempts"`
	Elapsed    time.Duration          `json:"elapsed_ns"`
	Timeout    time.Duration          `json:"timeout_ns"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Confirmed reports whether the slot was marked good.
func (r Report) Confirmed() bool {
	return r.Result == ResultConfirmed
}

// Store records session reports for other tooling to pick up.
type Store interface {
	Save(ctx context.Context, report Report) error
}
