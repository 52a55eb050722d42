package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
	"github.com/rorygraves/clientserverrunner-mcp/internal/handler"
	"github.com/rorygraves/clientserverrunner-mcp/internal/health"
	"github.com/rorygraves/clientserverrunner-mcp/internal/logpipeline"
	"github.com/rorygraves/clientserverrunner-mcp/internal/metrics"
	"github.com/rorygraves/clientserverrunner-mcp/internal/portalloc"
)

type ctrlOp int

const (
	opStart ctrlOp = iota
	opStop
	opInternalExit
	opRestartTick
	opShutdown
	opStatus
)

type ctrlMsg struct {
	op         ctrlOp
	graceful   bool
	depPorts   map[string]int
	spec       *appmodel.ApplicationSpec
	generation uint64
	exitErr    error
	resp       chan error
	rtResp     chan appmodel.ApplicationRuntime
}

// appActor is the single owning goroutine for one application's lifecycle,
// mirroring the teacher's handler.go/CtrlMsg actor pattern: every mutation
// to runtime state flows through ctrl, so no two goroutines ever race on a
// child process's lifecycle.
type appActor struct {
	configID, appID string
	log             *slog.Logger

	ports    *portalloc.Allocator
	handlers *handler.Registry

	ctrl chan ctrlMsg
	done chan struct{}

	// Owned exclusively by the run loop goroutine below this point.
	spec          appmodel.ApplicationSpec
	rt            appmodel.ApplicationRuntime
	pipeline      *logpipeline.Pipeline
	budget        restartBudget
	child         *childProcess
	generation    uint64
	stopRequested bool
	lastDepPorts  map[string]int
}

func newAppActor(configID string, spec appmodel.ApplicationSpec, pipeline *logpipeline.Pipeline, ports *portalloc.Allocator, handlers *handler.Registry, log *slog.Logger) *appActor {
	a := &appActor{
		configID: configID,
		appID:    spec.ID,
		log:      log,
		ports:    ports,
		handlers: handlers,
		ctrl:     make(chan ctrlMsg, 8),
		done:     make(chan struct{}),
		spec:     spec,
		pipeline: pipeline,
		rt:       appmodel.ApplicationRuntime{ConfigID: configID, AppID: spec.ID, State: appmodel.StateStopped},
	}
	go a.run()
	return a
}

func (a *appActor) run() {
	defer close(a.done)
	for msg := range a.ctrl {
		switch msg.op {
		case opStart:
			a.spec = *msg.spec
			err := a.doStart(msg.depPorts)
			if msg.resp != nil {
				msg.resp <- err
			}
		case opStop:
			err := a.doStop(msg.graceful)
			if msg.resp != nil {
				msg.resp <- err
			}
		case opInternalExit:
			if msg.generation == a.generation {
				a.handleExit(msg.exitErr)
			}
		case opRestartTick:
			if msg.generation == a.generation && !a.stopRequested {
				_ = a.doStart(msg.depPorts)
			}
		case opShutdown:
			_ = a.doStop(true)
			if msg.resp != nil {
				msg.resp <- nil
			}
			return
		case opStatus:
			if msg.rtResp != nil {
				msg.rtResp <- a.rt
			}
		}
	}
}

// send delivers msg and blocks for its response, or ctx's deadline.
func (a *appActor) send(ctx context.Context, msg ctrlMsg) error {
	msg.resp = make(chan error, 1)
	select {
	case a.ctrl <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-msg.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *appActor) ownerKey() string { return a.configID + "/" + a.appID }

// setState transitions rt.State, recording the change and the new gauge
// value with the metrics package.
func (a *appActor) setState(s appmodel.State) {
	from := a.rt.State
	if from == s {
		return
	}
	a.rt.State = s
	metrics.RecordStateTransition(a.configID, a.appID, string(from), string(s))
	for _, st := range []appmodel.State{appmodel.StateStopped, appmodel.StateStarting, appmodel.StateRunning, appmodel.StateFailed, appmodel.StateStopping} {
		metrics.SetCurrentState(a.configID, a.appID, string(st), st == s)
	}
}

// status round-trips through the actor loop to read a consistent snapshot
// of its runtime state without racing the goroutine that owns it.
func (a *appActor) status(ctx context.Context) (appmodel.ApplicationRuntime, error) {
	rtResp := make(chan appmodel.ApplicationRuntime, 1)
	select {
	case a.ctrl <- ctrlMsg{op: opStatus, rtResp: rtResp}:
	case <-ctx.Done():
		return appmodel.ApplicationRuntime{}, ctx.Err()
	}
	select {
	case rt := <-rtResp:
		return rt, nil
	case <-ctx.Done():
		return appmodel.ApplicationRuntime{}, ctx.Err()
	}
}

// shutdown stops the actor's child (if any) and waits for its run loop to
// return; the wait is not bounded by ctx. ctrl is never closed, so a late
// exit report or restart tick cannot send on a closed channel.
func (a *appActor) shutdown(_ context.Context) {
	select {
	case a.ctrl <- ctrlMsg{op: opShutdown}:
	case <-a.done:
	}
	<-a.done
}

// doStart runs the full startup sequence (spec.md §4.5 steps a-g): allocate
// the port, run the build command if any, prepare and spawn the command,
// then wait out the health check if one is configured.
func (a *appActor) doStart(depPorts map[string]int) error {
	if a.rt.State == appmodel.StateRunning || a.rt.State == appmodel.StateStarting {
		return nil
	}
	a.stopRequested = false
	a.setState(appmodel.StateStarting)
	a.rt.LastError = ""
	a.lastDepPorts = depPorts

	port, err := a.allocatePort()
	if err != nil {
		a.setState(appmodel.StateFailed)
		a.rt.LastError = err.Error()
		return err
	}
	a.rt.AllocatedPort = port

	if a.spec.BuildCommand != "" {
		if err := a.runBuild(); err != nil {
			a.releasePort()
			a.setState(appmodel.StateFailed)
			a.rt.LastError = err.Error()
			return err
		}
	}

	childEnv := buildEnv(a.spec, port, depPorts)
	h, err := a.handlers.Get(a.spec.HandlerTag)
	if err != nil {
		a.releasePort()
		a.setState(appmodel.StateFailed)
		a.rt.LastError = err.Error()
		return err
	}
	commandLine := h.PrepareCommand(a.spec, childEnv)

	if a.rt.RunID != "" {
		_ = a.pipeline.Archive(a.rt.RunID)
	}
	runID := logpipeline.NewRunID()

	spawnedAt := time.Now()
	cp, stdout, stderr, err := spawn(commandLine, a.spec.WorkDir, childEnv)
	if err != nil {
		a.releasePort()
		a.setState(appmodel.StateFailed)
		a.rt.LastError = err.Error()
		return apperror.Wrap(apperror.StartupFailed, "spawn application process", err)
	}
	a.pipeline.Attach(stdout, stderr)
	a.generation++
	gen := a.generation
	a.child = cp
	a.rt.PID = cp.pid
	a.rt.RunID = runID
	a.rt.StartedAt = time.Now().UTC()
	a.rt.Health = appmodel.HealthUnknown

	go cp.wait()
	go a.watchExit(cp, gen)

	if a.spec.HealthCheck != nil {
		if !a.awaitHealthy(gen) {
			_ = cp.terminate(5 * time.Second)
			a.releasePort()
			a.setState(appmodel.StateFailed)
			a.rt.LastError = "startup timed out waiting for health check"
			return apperror.New(apperror.StartupFailed, "startup timed out waiting for health check")
		}
	}
	a.setState(appmodel.StateRunning)
	a.rt.Health = appmodel.HealthHealthy
	metrics.IncStart(a.configID, a.appID)
	metrics.ObserveStartDuration(a.configID, a.appID, time.Since(spawnedAt).Seconds())
	a.log.Info("application started", "config_id", a.configID, "app_id", a.appID, "pid", cp.pid, "port", port)
	return nil
}

func (a *appActor) allocatePort() (int, error) {
	if a.spec.FixedPort != 0 {
		if err := a.ports.ReserveFixed(a.spec.FixedPort, a.ownerKey()); err != nil {
			return 0, err
		}
		return a.spec.FixedPort, nil
	}
	if a.spec.WantsDynamicPort() {
		return a.ports.Allocate()
	}
	return 0, nil
}

func (a *appActor) releasePort() {
	if a.spec.FixedPort != 0 {
		a.ports.ReleaseFixed(a.spec.FixedPort, a.ownerKey())
		return
	}
	if a.rt.AllocatedPort != 0 {
		a.ports.Release(a.rt.AllocatedPort)
	}
	a.rt.AllocatedPort = 0
}

func (a *appActor) runBuild() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	res, err := shellRun(ctx, a.spec.WorkDir, a.spec.BuildCommand, nil)
	if err != nil {
		return apperror.Wrap(apperror.BuildFailed, "build command failed to run", err)
	}
	if res.ExitCode != 0 {
		return apperror.WithDetails(apperror.BuildFailed, "build command exited non-zero",
			map[string]any{"exit_code": res.ExitCode, "stderr": res.Stderr})
	}
	return nil
}

// awaitHealthy polls the Health Prober until healthy, the configured
// startup timeout elapses, or the process dies first.
func (a *appActor) awaitHealthy(gen uint64) bool {
	timeout := a.spec.StartupTimeout.Duration()
	if timeout <= 0 {
		timeout = appmodel.DefaultStartupTimeout * time.Second
	}
	deadline := time.Now().Add(timeout)
	interval := a.spec.HealthCheck.Interval.Duration()
	if interval <= 0 {
		interval = time.Second
	}
	hc := health.Context{AllocatedPort: a.rt.AllocatedPort, PID: a.rt.PID}
	for time.Now().Before(deadline) {
		if gen != a.generation || a.child == nil || !a.child.alive() {
			return false
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.spec.HealthCheck.Timeout.Duration())
		verdict := health.Probe(ctx, *a.spec.HealthCheck, hc)
		cancel()
		if verdict == appmodel.HealthHealthy {
			return true
		}
		time.Sleep(interval)
	}
	return false
}

// watchExit blocks on cp's wait channel and reports the exit back to the
// owning actor loop, tagged with the generation it belongs to so a stale
// report from a process already superseded by a restart is ignored.
func (a *appActor) watchExit(cp *childProcess, gen uint64) {
	<-cp.waitDone
	select {
	case a.ctrl <- ctrlMsg{op: opInternalExit, generation: gen, exitErr: cp.exitErrSnapshot()}:
	case <-a.done:
	}
}

// handleExit runs in the actor loop after the monitored child exits on its
// own. An intentional stop already transitioned the state and set
// stopRequested before this message is processed, so it is a no-op then.
func (a *appActor) handleExit(exitErr error) {
	if a.stopRequested {
		return
	}
	a.releasePort()
	exitCode := exitCodeOf(exitErr)
	a.rt.LastExitCode = exitCode
	a.rt.Health = appmodel.HealthUnknown
	a.rt.StoppedAt = time.Now().UTC()

	if !a.spec.AutoRestart {
		a.setState(appmodel.StateFailed)
		a.rt.LastError = fmt.Sprintf("process exited unexpectedly with code %d", exitCode)
		a.log.Warn("application exited, auto_restart disabled", "config_id", a.configID, "app_id", a.appID, "exit_code", exitCode)
		return
	}

	now := time.Now()
	delay, allowed := a.budget.next(now)
	if !allowed {
		a.setState(appmodel.StateFailed)
		a.rt.LastError = fmt.Sprintf("exceeded %d restarts within %s; giving up", maxRestarts, restartWindow)
		a.log.Error("application restart budget exhausted", "config_id", a.configID, "app_id", a.appID)
		return
	}
	a.budget.record(now)
	a.setState(appmodel.StateFailed)
	a.rt.LastError = fmt.Sprintf("process exited with code %d, restarting in %s", exitCode, delay)
	a.log.Info("scheduling restart", "config_id", a.configID, "app_id", a.appID, "delay", delay)
	metrics.IncRestart(a.configID, a.appID)

	gen := a.generation
	depPorts := a.lastDepPorts
	time.AfterFunc(delay, func() {
		select {
		case a.ctrl <- ctrlMsg{op: opRestartTick, generation: gen, depPorts: depPorts}:
		case <-a.done:
		}
	})
}

// doStop terminates the running child (if any), archives its log, releases
// its port, and settles the runtime state to stopped. graceful selects
// SIGTERM-then-SIGKILL escalation over immediate SIGKILL.
func (a *appActor) doStop(graceful bool) error {
	a.stopRequested = true
	if a.rt.State != appmodel.StateRunning && a.rt.State != appmodel.StateStarting {
		a.setState(appmodel.StateStopped)
		return nil
	}
	a.setState(appmodel.StateStopping)
	if a.child != nil {
		wait := a.spec.StopTimeout.Duration()
		if wait <= 0 {
			wait = 10 * time.Second
		}
		var err error
		if graceful {
			err = a.child.terminate(wait)
		} else {
			err = a.child.kill()
		}
		a.rt.LastExitCode = exitCodeOf(err)
	}
	a.releasePort()
	if a.rt.RunID != "" {
		_ = a.pipeline.Archive(a.rt.RunID)
		a.rt.RunID = ""
	}
	a.setState(appmodel.StateStopped)
	a.rt.Health = appmodel.HealthUnknown
	a.rt.StoppedAt = time.Now().UTC()
	a.budget.reset()
	metrics.IncStop(a.configID, a.appID)
	a.log.Info("application stopped", "config_id", a.configID, "app_id", a.appID)
	return nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	type exitCoder interface{ ExitCode() int }
	if ec, ok := err.(exitCoder); ok {
		return ec.ExitCode()
	}
	return -1
}
