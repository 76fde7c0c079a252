package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nholik/rauc-health/internal/health"
	"github.com/nholik/rauc-health/internal/report"
)

type countingNotifier struct {
	calls int
	last  report.Report
	err   error
}

func (n *countingNotifier) Notify(_ context.Context, outcome report.Report) error {
	n.calls++
	n.last = outcome
	return n.err
}

func makeRollback(failing int) report.Report {
	failures := make([]health.FailedService, failing)
	for i := range failures {
		failures[i] = health.FailedService{Name: fmt.Sprintf("svc-%02d", i+1), State: "stopped"}
	}
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return report.Report{
		Host:       "gateway-01",
		Runlevel:   "default",
		Result:     report.ResultRolledBack,
		Failures:   failures,
		Attempts:   61,
		Elapsed:    30 * time.Second,
		Timeout:    30 * time.Second,
		StartedAt:  started,
		FinishedAt: started.Add(30 * time.Second),
	}
}

func makeConfirmed() report.Report {
	return report.Report{
		Host:     "gateway-01",
		Runlevel: "default",
		Result:   report.ResultConfirmed,
		Attempts: 1,
		Elapsed:  40 * time.Millisecond,
		Timeout:  30 * time.Second,
	}
}
