// Package runtime implements the Process Manager (spec.md §4.5): the
// component that owns every application's actual child process, mediates
// group start/stop through dependency order, and wires the Port Allocator,
// Health Prober, Log Pipeline, and Handler Registry together per
// application. Grounded in the teacher's internal/manager
// (handler.go/supervisor.go/manager.go) actor-and-control-channel shape,
// adapted from its flat process registry to this package's
// configuration-scoped, dependency-ordered model.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
	"github.com/rorygraves/clientserverrunner-mcp/internal/configstore"
	"github.com/rorygraves/clientserverrunner-mcp/internal/handler"
	"github.com/rorygraves/clientserverrunner-mcp/internal/historystore"
	"github.com/rorygraves/clientserverrunner-mcp/internal/logpipeline"
	"github.com/rorygraves/clientserverrunner-mcp/internal/portalloc"
)

type appKey struct {
	configID, appID string
}

// Manager is the single process-wide owner of every managed application's
// actor. It holds no durable state itself; Configuration documents live in
// the Configuration Store and are read fresh for every group operation.
type Manager struct {
	dataDir  string
	configs  *configstore.Store
	ports    *portalloc.Allocator
	handlers *handler.Registry
	log      *slog.Logger
	history  *historystore.Store

	mu        sync.Mutex
	actors    map[appKey]*appActor
	pipelines map[appKey]*logpipeline.Pipeline
}

// SetHistory attaches an optional lifecycle history store; nil disables it.
func (m *Manager) SetHistory(h *historystore.Store) { m.history = h }

func New(dataDir string, configs *configstore.Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		dataDir:   dataDir,
		configs:   configs,
		ports:     portalloc.New(),
		handlers:  handler.NewRegistry(),
		log:       log,
		actors:    make(map[appKey]*appActor),
		pipelines: make(map[appKey]*logpipeline.Pipeline),
	}
}

// Handlers exposes the registry so a bootstrap path can register additional
// app_type handlers before serving.
func (m *Manager) Handlers() *handler.Registry { return m.handlers }

func (m *Manager) pipelineFor(configID, appID string) (*logpipeline.Pipeline, error) {
	k := appKey{configID, appID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pipelines[k]; ok {
		return p, nil
	}
	p, err := logpipeline.New(m.dataDir, configID, appID)
	if err != nil {
		return nil, err
	}
	m.pipelines[k] = p
	return p, nil
}

// ensureActor returns the actor for (configID, spec.ID), creating it (and
// its Log Pipeline singleton) on first use.
func (m *Manager) ensureActor(configID string, spec appmodel.ApplicationSpec) (*appActor, error) {
	k := appKey{configID, spec.ID}
	m.mu.Lock()
	a, ok := m.actors[k]
	m.mu.Unlock()
	if ok {
		return a, nil
	}
	p, err := m.pipelineFor(configID, spec.ID)
	if err != nil {
		return nil, err
	}
	a = newAppActor(configID, spec, p, m.ports, m.handlers, m.log)
	m.mu.Lock()
	m.actors[k] = a
	m.mu.Unlock()
	return a, nil
}

func (m *Manager) getActor(configID, appID string) *appActor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actors[appKey{configID, appID}]
}

// resolveTargets defaults an empty appIDs list to every application id in cfg.
func resolveTargets(cfg *appmodel.Configuration, appIDs []string) []string {
	if len(appIDs) > 0 {
		return appIDs
	}
	out := make([]string, 0, len(cfg.Applications))
	for _, a := range cfg.Applications {
		out = append(out, a.ID)
	}
	return out
}

// depPortsFor collects the allocated/fixed port of every dependency of app,
// used to populate <DEP_ID>_PORT in the child's environment.
func (m *Manager) depPortsFor(ctx context.Context, configID string, app *appmodel.ApplicationSpec) map[string]int {
	out := make(map[string]int, len(app.DependsOn))
	for _, dep := range app.DependsOn {
		if a := m.getActor(configID, dep); a != nil {
			if rt, err := a.status(ctx); err == nil && rt.AllocatedPort != 0 {
				out[dep] = rt.AllocatedPort
			}
		}
	}
	return out
}

// StartGroup starts appIDs (default: every application) in dependency order,
// first extending the target set to include every transitive dependency so
// a requested app's prerequisites are always running first.
func (m *Manager) StartGroup(ctx context.Context, configID string, appIDs []string) (map[string]appmodel.ApplicationStatus, error) {
	cfg, err := m.configs.Get(configID)
	if err != nil {
		return nil, err
	}
	targets := resolveTargets(&cfg, appIDs)
	extended, err := appmodel.ExtendByDependencies(&cfg, targets)
	if err != nil {
		return nil, err
	}
	order, err := appmodel.TopoSort(&cfg, extended)
	if err != nil {
		return nil, err
	}

	results := make(map[string]appmodel.ApplicationStatus, len(order))
	for _, id := range order {
		app := cfg.AppByID(id)
		actor, err := m.ensureActor(configID, *app)
		if err != nil {
			return results, err
		}
		depPorts := m.depPortsFor(ctx, configID, app)
		if err := actor.send(ctx, ctrlMsg{op: opStart, spec: app, depPorts: depPorts}); err != nil {
			rt, _ := actor.status(ctx)
			results[id] = statusFromRuntime(rt)
			return results, fmt.Errorf("start %s: %w", id, err)
		}
		rt, _ := actor.status(ctx)
		results[id] = statusFromRuntime(rt)
		m.recordHistory(ctx, configID, results[id])
	}
	return results, nil
}

// recordHistory is a no-op unless SetHistory has attached a store.
func (m *Manager) recordHistory(ctx context.Context, configID string, st appmodel.ApplicationStatus) {
	if m.history == nil {
		return
	}
	if err := m.history.RecordStatus(ctx, configID, st); err != nil {
		m.log.Warn("failed to record history event", "config_id", configID, "app_id", st.AppID, "err", err)
	}
}

// StopGroup stops appIDs (default: every application) in reverse dependency
// order, first extending the target set to include every application that
// transitively depends on one of them so no running app is left pointing at
// a dependency that just disappeared.
func (m *Manager) StopGroup(ctx context.Context, configID string, appIDs []string, graceful bool) (map[string]appmodel.ApplicationStatus, error) {
	cfg, err := m.configs.Get(configID)
	if err != nil {
		return nil, err
	}
	targets := resolveTargets(&cfg, appIDs)
	extended := appmodel.ExtendByDependents(&cfg, targets)
	order, err := appmodel.TopoSort(&cfg, extended)
	if err != nil {
		return nil, err
	}

	results := make(map[string]appmodel.ApplicationStatus, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		actor := m.getActor(configID, id)
		if actor == nil {
			results[id] = appmodel.ApplicationStatus{AppID: id, State: appmodel.StateStopped}
			continue
		}
		if err := actor.send(ctx, ctrlMsg{op: opStop, graceful: graceful}); err != nil {
			rt, _ := actor.status(ctx)
			results[id] = statusFromRuntime(rt)
			return results, fmt.Errorf("stop %s: %w", id, err)
		}
		rt, _ := actor.status(ctx)
		results[id] = statusFromRuntime(rt)
		m.recordHistory(ctx, configID, results[id])
	}
	return results, nil
}

// RestartGroup stops then starts appIDs, preserving dependency ordering on
// each half independently.
func (m *Manager) RestartGroup(ctx context.Context, configID string, appIDs []string) (map[string]appmodel.ApplicationStatus, error) {
	if _, err := m.StopGroup(ctx, configID, appIDs, true); err != nil {
		return nil, err
	}
	return m.StartGroup(ctx, configID, appIDs)
}

// Status reports the current ApplicationStatus of every app in appIDs
// (default: every application in the configuration), regardless of whether
// an actor has ever been created for it.
func (m *Manager) Status(ctx context.Context, configID string, appIDs []string) (map[string]appmodel.ApplicationStatus, error) {
	cfg, err := m.configs.Get(configID)
	if err != nil {
		return nil, err
	}
	targets := resolveTargets(&cfg, appIDs)
	out := make(map[string]appmodel.ApplicationStatus, len(targets))
	for _, id := range targets {
		if cfg.AppByID(id) == nil {
			return nil, apperror.New(apperror.NotFound, "unknown app id: "+id)
		}
		actor := m.getActor(configID, id)
		if actor == nil {
			out[id] = appmodel.ApplicationStatus{AppID: id, State: appmodel.StateStopped}
			continue
		}
		rt, err := actor.status(ctx)
		if err != nil {
			return nil, err
		}
		out[id] = statusFromRuntime(rt)
	}
	return out, nil
}

// AllStopped reports whether every application of configID is stopped
// according to actor state, for configstore.Update/Delete's Busy check.
func (m *Manager) AllStopped(configID string, cfg *appmodel.Configuration) bool {
	return cfg.AllStopped(func(appID string) appmodel.State {
		a := m.getActor(configID, appID)
		if a == nil {
			return appmodel.StateStopped
		}
		rt, err := a.status(context.Background())
		if err != nil {
			return appmodel.StateStopped
		}
		return rt.State
	})
}

// DeleteConfiguration removes configID's document. When force is set and
// any of its applications are still running, it first issues a graceful
// group-stop before deleting; otherwise a non-stopped configuration is
// rejected with Busy by the Configuration Store. Either way, a successful
// delete also removes D/logs/<configID>/ and forgets every actor and log
// pipeline the Manager was holding for it, so nothing outlives the document
// it belonged to.
func (m *Manager) DeleteConfiguration(ctx context.Context, configID string, force bool) error {
	cfg, err := m.configs.Get(configID)
	if err != nil {
		return err
	}
	if force && !m.AllStopped(configID, &cfg) {
		if _, err := m.StopGroup(ctx, configID, nil, true); err != nil {
			return err
		}
	}
	allStopped := m.AllStopped(configID, &cfg)
	if err := m.configs.Delete(configID, allStopped); err != nil {
		return err
	}

	m.mu.Lock()
	for k := range m.actors {
		if k.configID == configID {
			delete(m.actors, k)
		}
	}
	for k, p := range m.pipelines {
		if k.configID == configID {
			p.Close()
			delete(m.pipelines, k)
		}
	}
	m.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(m.dataDir, "logs", configID)); err != nil {
		return apperror.Wrap(apperror.Internal, "remove configuration logs directory", err)
	}
	return nil
}

// TriggerReload dispatches a live-reload attempt to the app's handler.
func (m *Manager) TriggerReload(configID, appID string) (bool, string, error) {
	cfg, err := m.configs.Get(configID)
	if err != nil {
		return false, "", err
	}
	app := cfg.AppByID(appID)
	if app == nil {
		return false, "", apperror.New(apperror.NotFound, "unknown app id: "+appID)
	}
	h, err := m.handlers.Get(app.HandlerTag)
	if err != nil {
		return false, "", err
	}
	ok, reason := h.TriggerReload(*app)
	return ok, reason, nil
}

// RunCommand dispatches a handler-recognised or passthrough subcommand in
// the app's working directory, with its standard environment (including any
// currently allocated port and dependency ports) available to it.
func (m *Manager) RunCommand(ctx context.Context, configID, appID, command string, args []string) (appmodel.CommandResult, error) {
	cfg, err := m.configs.Get(configID)
	if err != nil {
		return appmodel.CommandResult{}, err
	}
	app := cfg.AppByID(appID)
	if app == nil {
		return appmodel.CommandResult{}, apperror.New(apperror.NotFound, "unknown app id: "+appID)
	}
	h, err := m.handlers.Get(app.HandlerTag)
	if err != nil {
		return appmodel.CommandResult{}, err
	}
	ownPort := 0
	if a := m.getActor(configID, appID); a != nil {
		if rt, err := a.status(ctx); err == nil {
			ownPort = rt.AllocatedPort
		}
	}
	depPorts := m.depPortsFor(ctx, configID, app)
	env := buildEnv(*app, ownPort, depPorts)
	return h.RunCustomCommand(ctx, *app, command, args, env)
}

// GetLogs tails n entries from the given run (default "current") of appID's
// Log Pipeline.
func (m *Manager) GetLogs(configID, appID string, n int, runID string) ([]appmodel.LogEntry, error) {
	p, err := m.pipelineFor(configID, appID)
	if err != nil {
		return nil, err
	}
	return p.Tail(n, runID)
}

// SearchLogs regex-searches appID's current log plus its retained archives.
func (m *Manager) SearchLogs(configID, appID, pattern string, maxResults int, caseSensitive bool) ([]appmodel.SearchMatch, error) {
	p, err := m.pipelineFor(configID, appID)
	if err != nil {
		return nil, err
	}
	return p.Search(pattern, maxResults, caseSensitive), nil
}

// ListLogRuns lists appID's archived log runs, newest-first.
func (m *Manager) ListLogRuns(configID, appID string) ([]appmodel.LogRunInfo, error) {
	p, err := m.pipelineFor(configID, appID)
	if err != nil {
		return nil, err
	}
	return p.ListRuns(), nil
}

// Shutdown stops every known actor. Called once, from the CLI entry point's
// signal handler, so in-flight requests always see a best-effort graceful
// drain rather than orphaned child processes.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	actors := make([]*appActor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, a := range actors {
		wg.Add(1)
		go func(a *appActor) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, 20*time.Second)
			defer cancel()
			a.shutdown(sctx)
		}(a)
	}
	wg.Wait()

	m.mu.Lock()
	for _, p := range m.pipelines {
		p.Close()
	}
	m.mu.Unlock()
}

func statusFromRuntime(rt appmodel.ApplicationRuntime) appmodel.ApplicationStatus {
	return appmodel.ApplicationStatus{
		AppID:         rt.AppID,
		State:         rt.State,
		PID:           rt.PID,
		ExitCode:      rt.LastExitCode,
		StartedAt:     rt.StartedAt,
		ErrorMessage:  rt.LastError,
		Health:        rt.Health,
		AllocatedPort: rt.AllocatedPort,
	}
}
