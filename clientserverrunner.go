// Package clientserverrunner re-exports the internal control surface's core
// types under a stable public API for embedding, the way the teacher's
// provisr.go wraps internal/manager.Manager behind a thin facade.
package clientserverrunner

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
	"github.com/rorygraves/clientserverrunner-mcp/internal/bootstrap"
	"github.com/rorygraves/clientserverrunner-mcp/internal/configstore"
	"github.com/rorygraves/clientserverrunner-mcp/internal/historystore"
	"github.com/rorygraves/clientserverrunner-mcp/internal/httpserver"
	"github.com/rorygraves/clientserverrunner-mcp/internal/metrics"
	"github.com/rorygraves/clientserverrunner-mcp/internal/runtime"
)

// Re-exported core types for external consumers. Aliases make conversions
// to/from the internal types zero-cost.
type (
	Configuration       = appmodel.Configuration
	ApplicationSpec     = appmodel.ApplicationSpec
	ApplicationStatus   = appmodel.ApplicationStatus
	ApplicationRuntime  = appmodel.ApplicationRuntime
	HealthCheckSpec     = appmodel.HealthCheckSpec
	LogEntry            = appmodel.LogEntry
	LogRunInfo          = appmodel.LogRunInfo
	SearchMatch         = appmodel.SearchMatch
	CommandResult       = appmodel.CommandResult
)

// Store is a thin facade over internal/configstore.Store.
type Store struct{ inner *configstore.Store }

func NewStore(dataDir string) (*Store, error) {
	s, err := configstore.New(dataDir)
	if err != nil {
		return nil, err
	}
	return &Store{inner: s}, nil
}

func (s *Store) Create(cfg Configuration) (string, error)  { return s.inner.Create(cfg) }
func (s *Store) Get(id string) (Configuration, error)      { return s.inner.Get(id) }
func (s *Store) List() ([]Configuration, error)            { return s.inner.List() }
func (s *Store) Delete(id string, allStopped bool) error   { return s.inner.Delete(id, allStopped) }

// Manager is a thin facade over internal/runtime.Manager.
type Manager struct{ inner *runtime.Manager }

func NewManager(dataDir string, store *Store, log *slog.Logger) *Manager {
	return &Manager{inner: runtime.New(dataDir, store.inner, log)}
}

func (m *Manager) SetHistory(path string) error {
	h, err := historystore.Open(path)
	if err != nil {
		return err
	}
	m.inner.SetHistory(h)
	return nil
}

func (m *Manager) StartGroup(ctx context.Context, configID string, appIDs []string) (map[string]ApplicationStatus, error) {
	return m.inner.StartGroup(ctx, configID, appIDs)
}

func (m *Manager) StopGroup(ctx context.Context, configID string, appIDs []string, graceful bool) (map[string]ApplicationStatus, error) {
	return m.inner.StopGroup(ctx, configID, appIDs, graceful)
}

func (m *Manager) Status(ctx context.Context, configID string, appIDs []string) (map[string]ApplicationStatus, error) {
	return m.inner.Status(ctx, configID, appIDs)
}

func (m *Manager) Shutdown(ctx context.Context) { m.inner.Shutdown(ctx) }

// ImportTOML reads a bootstrap TOML file and creates a new configuration in
// store, returning the assigned configuration id.
func ImportTOML(store *Store, path string) (string, error) {
	return bootstrap.Import(store.inner, path)
}

// NewHTTPServer starts an HTTP server exposing the control surface over addr
// using the given store and manager.
func NewHTTPServer(addr, basePath string, store *Store, m *Manager) *http.Server {
	return httpserver.NewServer(addr, basePath, store.inner, m.inner)
}

// RegisterMetrics registers the Prometheus collectors with r. Safe to call
// more than once.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// RegisterMetricsDefault registers the Prometheus collectors with the
// default global registry.
func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }
