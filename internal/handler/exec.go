package handler

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// runSync executes command/args synchronously in workDir with env, bounded
// by timeout, capturing stdout/stderr and exit code. A non-zero exit is not
// an error (spec.md §7): it is reported via CommandResult.ExitCode.
func runSync(ctx context.Context, workDir, command string, args []string, env []string, timeout time.Duration) (appmodel.CommandResult, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- command originates from the application's own configuration.
	cmd := exec.CommandContext(cctx, command, args...)
	cmd.Dir = workDir
	if len(env) > 0 {
		cmd.Env = env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	dur := time.Since(start)

	res := appmodel.CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: dur,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// shellRunSync runs an arbitrary shell command line, for the "pass through
// an arbitrary command string" branch of run_custom_command.
func shellRunSync(ctx context.Context, workDir, line string, env []string, timeout time.Duration) (appmodel.CommandResult, error) {
	return runSync(ctx, workDir, "/bin/sh", []string{"-c", line}, env, timeout)
}
