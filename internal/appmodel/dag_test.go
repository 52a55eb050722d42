package appmodel

import (
	"testing"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/stretchr/testify/require"
)

func appSpec(id string, deps ...string) ApplicationSpec {
	return ApplicationSpec{ID: id, Name: id, HandlerTag: "generic", WorkDir: "/tmp", Command: "true", DependsOn: deps}
}

func TestTopoSortChain(t *testing.T) {
	cfg := &Configuration{Applications: []ApplicationSpec{
		appSpec("a"),
		appSpec("b", "a"),
		appSpec("c", "b"),
	}}
	order, err := TopoSort(cfg, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopoSortDiamondIsDeterministic(t *testing.T) {
	cfg := &Configuration{Applications: []ApplicationSpec{
		appSpec("a"),
		appSpec("b", "a"),
		appSpec("c", "a"),
		appSpec("d", "b", "c"),
	}}
	order, err := TopoSort(cfg, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, order)

	order2, err := TopoSort(cfg, []string{"d", "c", "b", "a"})
	require.NoError(t, err)
	require.Equal(t, order, order2)
}

func TestTopoSortUnknownAppID(t *testing.T) {
	cfg := &Configuration{Applications: []ApplicationSpec{appSpec("a")}}
	_, err := TopoSort(cfg, []string{"missing"})
	require.True(t, apperror.IsConfigInvalid(err))
}

func TestTopoSortUnknownDependency(t *testing.T) {
	cfg := &Configuration{Applications: []ApplicationSpec{appSpec("a", "ghost")}}
	_, err := TopoSort(cfg, []string{"a"})
	require.True(t, apperror.IsConfigInvalid(err))
}

func TestTopoSortCycle(t *testing.T) {
	cfg := &Configuration{Applications: []ApplicationSpec{
		appSpec("a", "b"),
		appSpec("b", "a"),
	}}
	_, err := TopoSort(cfg, []string{"a", "b"})
	require.True(t, apperror.IsConfigInvalid(err))

	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	cyc, ok := ae.Details["cycle"].([]string)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"a", "b"}, cyc)
}

func TestExtendByDependencies(t *testing.T) {
	cfg := &Configuration{Applications: []ApplicationSpec{
		appSpec("a"),
		appSpec("b", "a"),
		appSpec("c", "b"),
	}}
	out, err := ExtendByDependencies(cfg, []string{"c"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, out)
}

func TestExtendByDependenciesUnknownID(t *testing.T) {
	cfg := &Configuration{Applications: []ApplicationSpec{appSpec("a")}}
	_, err := ExtendByDependencies(cfg, []string{"ghost"})
	require.True(t, apperror.IsConfigInvalid(err))
}

func TestExtendByDependents(t *testing.T) {
	cfg := &Configuration{Applications: []ApplicationSpec{
		appSpec("a"),
		appSpec("b", "a"),
		appSpec("c", "b"),
		appSpec("d"),
	}}
	out := ExtendByDependents(cfg, []string{"a"})
	require.Equal(t, []string{"a", "b", "c"}, out)
}

func TestHasCycleFalseOnAcyclic(t *testing.T) {
	cfg := &Configuration{Applications: []ApplicationSpec{
		appSpec("a"),
		appSpec("b", "a"),
	}}
	cyc, ok := HasCycle(cfg)
	require.False(t, ok)
	require.Nil(t, cyc)
}

func TestHasCycleTrueOnSelfLoop(t *testing.T) {
	cfg := &Configuration{Applications: []ApplicationSpec{
		appSpec("a", "a"),
	}}
	_, ok := HasCycle(cfg)
	require.True(t, ok)
}
