package runtime

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// shellRun executes a build_command line synchronously via /bin/sh -c,
// capturing output the same way the Handler Registry's run_custom_command
// does, so build failures can surface the build's stderr in the error detail.
func shellRun(ctx context.Context, workDir, line string, env []string) (appmodel.CommandResult, error) {
	// #nosec G204 -- command originates from the application's own configuration.
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", line)
	cmd.Dir = workDir
	if len(env) > 0 {
		cmd.Env = env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := appmodel.CommandResult{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}
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
