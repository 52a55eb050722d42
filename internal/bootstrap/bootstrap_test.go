package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/configstore"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, workDir string) string {
	t.Helper()
	content := fmt.Sprintf(`
name = "legacy-site"
description = "imported from legacy toml"

[[applications]]
id = "api"
name = "api"
handler_tag = "python"
workdir = %q
command = "python app.py"
autorestart = true
startup_timeout = "15s"

[applications.env]
PORT = "8080"
`, workDir)
	path := filepath.Join(t.TempDir(), "legacy.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func TestLoadParsesApplications(t *testing.T) {
	path := writeTOML(t, t.TempDir())
	fc, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "legacy-site", fc.Name)
	require.Len(t, fc.Applications, 1)
	require.Equal(t, "api", fc.Applications[0].ID)
	require.Equal(t, 15*time.Second, fc.Applications[0].StartupTimeout)
	require.Equal(t, "8080", fc.Applications[0].Env["PORT"])
}

func TestToConfigurationConvertsHealthCheck(t *testing.T) {
	fc := FileConfig{
		Name: "site",
		Applications: []AppConfig{
			{
				ID: "api", Name: "api", HandlerTag: "python", WorkDir: "/tmp", Command: "run",
				HealthCheck: &HealthCheckConfig{Kind: "http", URL: "http://localhost/health", Timeout: 5 * time.Second},
			},
		},
	}
	cfg, err := ToConfiguration(fc)
	require.NoError(t, err)
	require.Len(t, cfg.Applications, 1)
	require.NotNil(t, cfg.Applications[0].HealthCheck)
	require.Equal(t, "http", string(cfg.Applications[0].HealthCheck.Kind))
}

func TestImportCreatesConfigurationInStore(t *testing.T) {
	workDir := t.TempDir()
	path := writeTOML(t, workDir)

	store, err := configstore.New(t.TempDir())
	require.NoError(t, err)

	id, err := Import(store, path)
	require.NoError(t, err)
	require.Equal(t, "legacy-site", id)

	cfg, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, "imported from legacy toml", cfg.Description)
	require.Len(t, cfg.Applications, 1)
}

func TestImportPropagatesLoadError(t *testing.T) {
	store, err := configstore.New(t.TempDir())
	require.NoError(t, err)
	_, err = Import(store, filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}
