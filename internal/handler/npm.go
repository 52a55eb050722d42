package handler

import (
	"context"
	"strings"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// npmHandler covers node-package applications driven by a package.json
// script. Grounded in original_source's types/npm.py.
type npmHandler struct{}

func newNPMHandler() *npmHandler { return &npmHandler{} }

func (npmHandler) PrepareCommand(spec appmodel.ApplicationSpec, env []string) string {
	return spec.Command
}

// SupportsReload is true for standard node dev servers, which self-watch.
func (npmHandler) SupportsReload(spec appmodel.ApplicationSpec) bool {
	cmd := spec.Command
	return strings.Contains(cmd, "dev") ||
		strings.Contains(cmd, "watch") ||
		strings.Contains(cmd, "nodemon")
}

// TriggerReload is a no-op: standard node dev servers (vite, next dev,
// nodemon) already watch the filesystem themselves.
func (h npmHandler) TriggerReload(spec appmodel.ApplicationSpec) (bool, string) {
	if h.SupportsReload(spec) {
		return false, "handler reloads automatically"
	}
	return false, "command does not support reload"
}

var npmCommands = map[string]string{
	"lint":      "npm run lint",
	"format":    "npm run format",
	"test":      "npm test",
	"typecheck": "npm run typecheck",
	"build":     "npm run build",
	"compile":   "npm run build",
	"clean":     "npm run clean",
}

func (npmHandler) RunCustomCommand(ctx context.Context, spec appmodel.ApplicationSpec, command string, args []string, env []string) (appmodel.CommandResult, error) {
	timeout := commandTimeouts["npm"]
	if line, ok := npmCommands[command]; ok {
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
