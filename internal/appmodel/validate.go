package appmodel

import (
	"os"
	"path/filepath"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
)

// Validate checks a Configuration document against the data model: unique
// app ids, existing working directories, known dependency ids, and no
// dependency cycle. It is run by the Configuration Store on create/update,
// mirroring ConfigManager's validation plus Configuration._check_circular_dependencies
// in the original implementation.
func (c *Configuration) Validate() error {
	if c.Name == "" {
		return apperror.New(apperror.ConfigInvalid, "configuration name is required")
	}
	seen := make(map[string]bool, len(c.Applications))
	for _, app := range c.Applications {
		if app.ID == "" {
			return apperror.New(apperror.ConfigInvalid, "application id is required")
		}
		if seen[app.ID] {
			return apperror.New(apperror.ConfigInvalid, "duplicate application id: "+app.ID)
		}
		seen[app.ID] = true
		if err := app.validateStandalone(); err != nil {
			return err
		}
	}
	for _, app := range c.Applications {
		for _, dep := range app.DependsOn {
			if !seen[dep] {
				return apperror.New(apperror.ConfigInvalid, "unknown dependency id: "+dep+" referenced by "+app.ID)
			}
		}
	}
	if cyc, ok := HasCycle(c); ok {
		return apperror.WithDetails(apperror.ConfigInvalid, "dependency cycle detected", map[string]any{"cycle": cyc})
	}
	return nil
}

func (a *ApplicationSpec) validateStandalone() error {
	if a.Name == "" {
		return apperror.New(apperror.ConfigInvalid, "application name is required for "+a.ID)
	}
	if a.HandlerTag == "" {
		return apperror.New(apperror.ConfigInvalid, "handler_tag is required for "+a.ID)
	}
	if a.WorkDir == "" || !filepath.IsAbs(a.WorkDir) {
		return apperror.New(apperror.ConfigInvalid, "work_dir must be an absolute path for "+a.ID)
	}
	if fi, err := os.Stat(a.WorkDir); err != nil || !fi.IsDir() {
		return apperror.New(apperror.ConfigInvalid, "work_dir does not exist for "+a.ID+": "+a.WorkDir)
	}
	if a.Command == "" {
		return apperror.New(apperror.ConfigInvalid, "command is required for "+a.ID)
	}
	if a.FixedPort != 0 && a.FixedPort < 0 {
		return apperror.New(apperror.ConfigInvalid, "fixed_port must be positive for "+a.ID)
	}
	if a.HealthCheck != nil {
		switch a.HealthCheck.Kind {
		case HealthHTTP, HealthTCP, HealthProcess:
		default:
			return apperror.New(apperror.ConfigInvalid, "unknown health check kind for "+a.ID)
		}
		if a.HealthCheck.Kind == HealthHTTP && a.HealthCheck.URL == "" {
			return apperror.New(apperror.ConfigInvalid, "health check url required for "+a.ID)
		}
	}
	return nil
}

// AllStopped reports whether every application in the configuration is
// stopped according to the given runtime state lookup. The Configuration
// Store uses this to enforce the Busy rule on update/delete.
func (c *Configuration) AllStopped(stateOf func(appID string) State) bool {
	for _, app := range c.Applications {
		if stateOf(app.ID) != StateStopped {
			return false
		}
	}
	return true
}

// DefaultStartupTimeout matches spec.md §3's "startup-timeout seconds (default 30)".
const DefaultStartupTimeout = 30
