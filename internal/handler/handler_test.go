package handler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetKnownTags(t *testing.T) {
	r := NewRegistry()
	for _, tag := range []string{"python", "npm", "scala"} {
		h, err := r.Get(tag)
		require.NoError(t, err)
		require.NotNil(t, h)
	}
}

func TestRegistryGetUnknownTag(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("ruby")
	require.Equal(t, apperror.HandlerMissing, apperror.KindOf(err))
}

func TestRegistryRegisterOverridesTag(t *testing.T) {
	r := NewRegistry()
	r.Register("python", newNPMHandler())
	h, err := r.Get("python")
	require.NoError(t, err)
	require.IsType(t, &npmHandler{}, h)
}

func TestPythonSupportsReload(t *testing.T) {
	h := newPythonHandler()
	require.True(t, h.SupportsReload(appmodel.ApplicationSpec{Command: "uvicorn app:app --reload"}))
	require.True(t, h.SupportsReload(appmodel.ApplicationSpec{Command: "python manage.py runserver"}))
	require.False(t, h.SupportsReload(appmodel.ApplicationSpec{Command: "python app.py"}))
}

func TestPythonTriggerReloadTouchesSentinel(t *testing.T) {
	h := newPythonHandler()
	dir := t.TempDir()
	spec := appmodel.ApplicationSpec{Command: "uvicorn app:app --reload", WorkDir: dir}

	ok, reason := h.TriggerReload(spec)
	require.True(t, ok)
	require.Contains(t, reason, ".reload")
	_, err := os.Stat(filepath.Join(dir, ".reload"))
	require.NoError(t, err)
}

func TestPythonTriggerReloadUnsupported(t *testing.T) {
	h := newPythonHandler()
	ok, reason := h.TriggerReload(appmodel.ApplicationSpec{Command: "python app.py"})
	require.False(t, ok)
	require.Equal(t, "command does not support reload", reason)
}

func TestNPMSupportsReloadAndNoOpTrigger(t *testing.T) {
	h := newNPMHandler()
	spec := appmodel.ApplicationSpec{Command: "npm run dev"}
	require.True(t, h.SupportsReload(spec))
	ok, reason := h.TriggerReload(spec)
	require.False(t, ok)
	require.Equal(t, "handler reloads automatically", reason)
}

func TestNPMUnsupportedReload(t *testing.T) {
	h := newNPMHandler()
	ok, reason := h.TriggerReload(appmodel.ApplicationSpec{Command: "node server.js"})
	require.False(t, ok)
	require.Equal(t, "command does not support reload", reason)
}

func TestScalaSupportsReloadOnTildeRun(t *testing.T) {
	h := newScalaHandler()
	require.True(t, h.SupportsReload(appmodel.ApplicationSpec{Command: "sbt ~run"}))
	require.False(t, h.SupportsReload(appmodel.ApplicationSpec{Command: "sbt run"}))
}

func TestRunCustomCommandKnownVerb(t *testing.T) {
	h := newPythonHandler()
	res, err := h.RunCustomCommand(context.Background(), appmodel.ApplicationSpec{WorkDir: t.TempDir()}, "clean", nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
}

func TestRunCustomCommandPassthrough(t *testing.T) {
	h := newNPMHandler()
	res, err := h.RunCustomCommand(context.Background(), appmodel.ApplicationSpec{WorkDir: t.TempDir()}, "echo", []string{"hi"}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Stdout, "hi")
}

func TestRunCustomCommandRequiresCommand(t *testing.T) {
	h := newScalaHandler()
	_, err := h.RunCustomCommand(context.Background(), appmodel.ApplicationSpec{WorkDir: t.TempDir()}, "", nil, nil)
	require.True(t, apperror.IsConfigInvalid(err))
}

func TestRunCustomCommandCapturesNonZeroExit(t *testing.T) {
	h := newScalaHandler()
	res, err := h.RunCustomCommand(context.Background(), appmodel.ApplicationSpec{WorkDir: t.TempDir()}, "exit", []string{"3"}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
}
