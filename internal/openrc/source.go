package openrc

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/nholik/rauc-health/internal/command"
)

const (
	rcStatusProgram = "rc-status"
	// DefaultRunlevel is the runlevel inspected when none is configured.
	DefaultRunlevel = "default"
)

// StatusSource fetches the rc-status report for one runlevel.
type StatusSource struct {
	runner   command.Runner
	runlevel string
}

// NewStatusSource returns a source that queries runlevel through runner.
func NewStatusSource(runner command.Runner, runlevel string) *StatusSource {
	if runlevel == "" {
		runlevel = DefaultRunlevel
	}
	return &StatusSource{runner: runner, runlevel: runlevel}
}

// Runlevel returns the runlevel this source reports on.
func (s *StatusSource) Runlevel() string {
	return s.runlevel
}

// Fetch runs rc-status and returns its output verbatim.
func (s *StatusSource) Fetch(ctx context.Context) (string, error) {
	if s == nil || s.runner == nil {
		return "", errors.New("status source is not initialized")
	}
	result, err := command.Checked(ctx, s.runner, rcStatusProgram, "--nocolor", s.runlevel)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(result.Stdout) {
		return "", fmt.Errorf("`%s` output was not valid UTF-8", rcStatusProgram)
	}
	return string(result.Stdout), nil
}
