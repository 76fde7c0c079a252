package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nholik/rauc-health/internal/command"
	"github.com/nholik/rauc-health/internal/runner"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitStatusFetch = 3
	exitAction      = 4
)

// app holds the process-level seams the command tree is built on.
type app struct {
	runner   command.Runner
	logOut   io.Writer
	errOut   io.Writer
	hostname func() (string, error)
	sleep    func(time.Duration)
}

func newApp() *app {
	return &app{
		runner:   command.NewExecRunner(),
		logOut:   os.Stdout,
		errOut:   os.Stderr,
		hostname: os.Hostname,
		sleep:    time.Sleep,
	}
}

func main() {
	os.Exit(run(context.Background(), newApp(), os.Args[1:]))
}

func run(ctx context.Context, a *app, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
	}
	return exitCode(err)
}

// configError marks failures that happen before any check runs.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }

func (e *configError) Unwrap() error { return e.err }

func wrapConfig(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var cfgErr *configError
	var fetchErr *runner.StatusFetchError
	var actionErr *runner.ActionError
	switch {
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.As(err, &fetchErr):
		return exitStatusFetch
	case errors.As(err, &actionErr):
		return exitAction
	default:
		return exitFailure
	}
}
