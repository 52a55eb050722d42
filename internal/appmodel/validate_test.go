package appmodel

import (
	"testing"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/stretchr/testify/require"
)

func validSpec(t *testing.T, id string, deps ...string) ApplicationSpec {
	return ApplicationSpec{
		ID:         id,
		Name:       id,
		HandlerTag: "generic",
		WorkDir:    t.TempDir(),
		Command:    "true",
		DependsOn:  deps,
	}
}

func TestValidateRequiresName(t *testing.T) {
	cfg := &Configuration{}
	require.True(t, apperror.IsConfigInvalid(cfg.Validate()))
}

func TestValidateAcceptsWellFormedConfiguration(t *testing.T) {
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{
		validSpec(t, "api"),
		validSpec(t, "web", "api"),
	}}
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsDuplicateAppID(t *testing.T) {
	a := validSpec(t, "api")
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{a, a}}
	require.True(t, apperror.IsConfigInvalid(cfg.Validate()))
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{
		validSpec(t, "web", "ghost"),
	}}
	require.True(t, apperror.IsConfigInvalid(cfg.Validate()))
}

func TestValidateRejectsCycle(t *testing.T) {
	a := validSpec(t, "a", "b")
	b := validSpec(t, "b", "a")
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{a, b}}
	err := cfg.Validate()
	require.True(t, apperror.IsConfigInvalid(err))
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	require.NotNil(t, ae.Details["cycle"])
}

func TestValidateRejectsRelativeWorkDir(t *testing.T) {
	spec := validSpec(t, "api")
	spec.WorkDir = "relative/path"
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{spec}}
	require.True(t, apperror.IsConfigInvalid(cfg.Validate()))
}

func TestValidateRejectsMissingWorkDir(t *testing.T) {
	spec := validSpec(t, "api")
	spec.WorkDir = spec.WorkDir + "/does-not-exist"
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{spec}}
	require.True(t, apperror.IsConfigInvalid(cfg.Validate()))
}

func TestValidateRejectsMissingHandlerTag(t *testing.T) {
	spec := validSpec(t, "api")
	spec.HandlerTag = ""
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{spec}}
	require.True(t, apperror.IsConfigInvalid(cfg.Validate()))
}

func TestValidateRejectsHTTPHealthCheckWithoutURL(t *testing.T) {
	spec := validSpec(t, "api")
	spec.HealthCheck = &HealthCheckSpec{Kind: HealthHTTP}
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{spec}}
	require.True(t, apperror.IsConfigInvalid(cfg.Validate()))
}

func TestValidateAcceptsTCPHealthCheckWithoutURL(t *testing.T) {
	spec := validSpec(t, "api")
	spec.HealthCheck = &HealthCheckSpec{Kind: HealthTCP, Port: 9090}
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{spec}}
	require.NoError(t, cfg.Validate())
}

func TestAllStoppedReportsFalseWhenAnyRunning(t *testing.T) {
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{
		{ID: "a"}, {ID: "b"},
	}}
	running := map[string]State{"a": StateStopped, "b": StateRunning}
	require.False(t, cfg.AllStopped(func(id string) State { return running[id] }))
}

func TestAllStoppedTrueWhenAllStopped(t *testing.T) {
	cfg := &Configuration{Name: "site", Applications: []ApplicationSpec{
		{ID: "a"}, {ID: "b"},
	}}
	require.True(t, cfg.AllStopped(func(string) State { return StateStopped }))
}
