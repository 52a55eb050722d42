package handler

import (
	"context"
	"strings"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// scalaHandler covers sbt-style applications. Grounded in original_source's
// types/scala.py.
type scalaHandler struct{}

func newScalaHandler() *scalaHandler { return &scalaHandler{} }

// PrepareCommand leaves sbt invocations untouched: they require no shell
// expansion beyond what the spec already provides.
func (scalaHandler) PrepareCommand(spec appmodel.ApplicationSpec, env []string) string {
	return spec.Command
}

func (scalaHandler) SupportsReload(spec appmodel.ApplicationSpec) bool {
	return strings.Contains(spec.Command, "~run") || strings.Contains(spec.Command, "~ run")
}

// TriggerReload is a no-op: sbt's "~run" triggered-execution already watches
// sources and recompiles automatically.
func (h scalaHandler) TriggerReload(spec appmodel.ApplicationSpec) (bool, string) {
	if h.SupportsReload(spec) {
		return false, "handler reloads automatically"
	}
	return false, "command does not support reload"
}

var scalaCommands = map[string]string{
	"lint":      "sbt scalafmtCheckAll",
	"format":    "sbt scalafmtAll",
	"test":      "sbt test",
	"typecheck": "sbt compile",
	"build":     "sbt compile",
	"compile":   "sbt compile",
	"clean":     "sbt clean",
}

func (scalaHandler) RunCustomCommand(ctx context.Context, spec appmodel.ApplicationSpec, command string, args []string, env []string) (appmodel.CommandResult, error) {
	timeout := commandTimeouts["scala"]
	if line, ok := scalaCommands[command]; ok {
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
