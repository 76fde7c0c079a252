package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const stderrLimit = 512

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner starts external programs. Implementations return an error only
// when the program could not be run at all; a non-zero exit is reported
// through Result.ExitCode.
type Runner interface {
	Run(ctx context.Context, program string, args ...string) (Result, error)
}

// ExecRunner runs programs on the host with os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() ExecRunner {
	return ExecRunner{}
}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, program string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, program, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, fmt.Errorf("failed to execute `%s`: %w", Describe(program, args...), err)
}

// ExitError reports a program that ran but exited unsuccessfully.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("`%s` exited with status %d: %s", e.Command, e.Code, e.Stderr)
	}
	return fmt.Sprintf("`%s` exited with status %d", e.Command, e.Code)
}

// Checked runs program and treats a non-zero exit status as an *ExitError.
func Checked(ctx context.Context, runner Runner, program string, args ...string) (Result, error) {
	result, err := runner.Run(ctx, program, args...)
	if err != nil {
		return result, err
	}
	if result.ExitCode != 0 {
		return result, &ExitError{
			Command: Describe(program, args...),
			Code:    result.ExitCode,
			Stderr:  trimStderr(result.Stderr),
		}
	}
	return result, nil
}

// Describe renders a command line for logs and error messages.
func Describe(program string, args ...string) string {
	if len(args) == 0 {
		return program
	}
	return program + " " + strings.Join(args, " ")
}

func trimStderr(stderr []byte) string {
	text := strings.TrimSpace(string(stderr))
	if len(text) > stderrLimit {
		text = text[:stderrLimit] + "…"
	}
	return text
}
