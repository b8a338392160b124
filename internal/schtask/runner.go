package schtask

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result is the captured outcome of one control-script invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a rendered control script against the host scheduler.
// This package only produces script text and interprets results; spawning
// the external process is the Runner's job, so tests substitute fakes and
// callers may wrap invocations with their own policies.
type Runner interface {
	Run(ctx context.Context, script string) (Result, error)
}

// PowerShellRunner invokes scripts through powershell.exe. A non-zero exit
// is not an error at this level; it is reported through Result.ExitCode so
// callers can attach the operation context.
type PowerShellRunner struct {
	// Path overrides the powershell binary; empty means "powershell.exe".
	Path string
}

func (r *PowerShellRunner) Run(ctx context.Context, script string) (Result, error) {
	shell := r.Path
	if shell == "" {
		shell = "powershell.exe"
	}
	cmd := exec.CommandContext(ctx, shell, "-NoProfile", "-ExecutionPolicy", "Bypass", "-Command", script) // #nosec G204

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("run powershell: %w", err)
	}
	return res, nil
}
