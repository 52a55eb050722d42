// Package handler implements the Handler Registry (spec.md §4.4): a mapping
// from app_type tag to a value exposing prepare_command/supports_reload/
// trigger_reload/run_custom_command. Grounded in original_source's
// types/base.py ApplicationHandler ABC and HandlerRegistry, adapted to Go's
// interface-and-map idiom the way the teacher adapts detector.Detector.
package handler

import (
	"context"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// Handler encapsulates per-family knowledge for one app_type.
type Handler interface {
	// PrepareCommand may rewrite or wrap the raw command. Must be pure and idempotent.
	PrepareCommand(spec appmodel.ApplicationSpec, env []string) string
	// SupportsReload performs static inspection of the command string.
	SupportsReload(spec appmodel.ApplicationSpec) bool
	// TriggerReload attempts a live reload; returns (false, reason) when unsupported.
	TriggerReload(spec appmodel.ApplicationSpec) (bool, string)
	// RunCustomCommand executes a recognised subcommand or passes an arbitrary
	// command through, synchronously, in the spec's working directory.
	RunCustomCommand(ctx context.Context, spec appmodel.ApplicationSpec, command string, args []string, env []string) (appmodel.CommandResult, error)
}

// Registry maps app_type tags to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a registry with the three built-in handlers installed.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register("python", newPythonHandler())
	r.Register("npm", newNPMHandler())
	r.Register("scala", newScalaHandler())
	return r
}

// Register installs or replaces the handler for tag. Additional handlers may
// be registered under new tags without changing the Process Manager.
func (r *Registry) Register(tag string, h Handler) {
	r.handlers[tag] = h
}

// Get returns the handler for tag, or HandlerMissing.
func (r *Registry) Get(tag string) (Handler, error) {
	h, ok := r.handlers[tag]
	if !ok {
		return nil, apperror.New(apperror.HandlerMissing, "no handler registered for app_type: "+tag)
	}
	return h, nil
}

// commandTimeouts bounds a family's run_custom_command execution.
var commandTimeouts = map[string]time.Duration{
	"python": 5 * time.Minute,
	"npm":     10 * time.Minute,
	"scala":   15 * time.Minute,
}
