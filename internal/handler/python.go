package handler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// pythonHandler covers generic interpreted (python/uvicorn/django/flask)
// applications. Grounded in original_source's types/python.py.
type pythonHandler struct{}

func newPythonHandler() *pythonHandler { return &pythonHandler{} }

func (pythonHandler) PrepareCommand(spec appmodel.ApplicationSpec, env []string) string {
	return spec.Command
}

func (pythonHandler) SupportsReload(spec appmodel.ApplicationSpec) bool {
	cmd := spec.Command
	return strings.Contains(cmd, "--reload") ||
		strings.Contains(cmd, "--debug") ||
		strings.Contains(cmd, "runserver")
}

// TriggerReload touches a ".reload" sentinel file in the app's working
// directory when the command supports it; reload-watching frameworks
// (uvicorn --reload, Django runserver) pick that up via their own watcher.
func (h pythonHandler) TriggerReload(spec appmodel.ApplicationSpec) (bool, string) {
	if !h.SupportsReload(spec) {
		return false, "command does not support reload"
	}
	sentinel := filepath.Join(spec.WorkDir, ".reload")
	now := timeNow()
	if err := os.WriteFile(sentinel, []byte(now), 0o640); err != nil {
		return false, "failed to touch reload sentinel: " + err.Error()
	}
	return true, "touched " + sentinel
}

var pythonCommands = map[string]string{
	"lint":      "python -m flake8 .",
	"format":    "python -m black .",
	"test":      "python -m pytest",
	"typecheck": "python -m mypy .",
	"build":     "python -m build",
	"clean":     "find . -name __pycache__ -type d -exec rm -rf {} +",
}

func (pythonHandler) RunCustomCommand(ctx context.Context, spec appmodel.ApplicationSpec, command string, args []string, env []string) (appmodel.CommandResult, error) {
	timeout := commandTimeouts["python"]
	if line, ok := pythonCommands[command]; ok {
		return shellRunSync(ctx, spec.WorkDir, line, env, timeout)
	}
	if command == "" {
		return appmodel.CommandResult{}, apperror.New(apperror.ConfigInvalid, "run_command requires a command")
	}
	full := command
	if len(args) > 0 {
		full = command + " " + strings.Join(args, " ")
	}
	return shellRunSync(ctx, spec.WorkDir, full, env, timeout)
}
