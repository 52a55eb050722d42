package portalloc

import (
	"testing"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/stretchr/testify/require"
)

func TestAllocateReturnsDistinctPorts(t *testing.T) {
	a := New()
	p1, err := a.Allocate()
	require.NoError(t, err)
	require.NotZero(t, p1)

	p2, err := a.Allocate()
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)
}

func TestReleaseAllowsReuseBookkeeping(t *testing.T) {
	a := New()
	p, err := a.Allocate()
	require.NoError(t, err)
	a.Release(p)
	require.False(t, a.reserved[p])
}

func TestReleaseZeroIsNoop(t *testing.T) {
	a := New()
	a.Release(0)
}

func TestReserveFixedRejectsCollisionFromDifferentOwner(t *testing.T) {
	a := New()
	require.NoError(t, a.ReserveFixed(9000, "cfg/app-a"))
	err := a.ReserveFixed(9000, "cfg/app-b")
	require.True(t, apperror.IsPortUnavailable(err))
}

func TestReserveFixedIdempotentForSameOwner(t *testing.T) {
	a := New()
	require.NoError(t, a.ReserveFixed(9000, "cfg/app-a"))
	require.NoError(t, a.ReserveFixed(9000, "cfg/app-a"))
}

func TestReleaseFixedOnlyReleasesOwnReservation(t *testing.T) {
	a := New()
	require.NoError(t, a.ReserveFixed(9000, "cfg/app-a"))
	a.ReleaseFixed(9000, "cfg/app-b")
	err := a.ReserveFixed(9000, "cfg/app-b")
	require.True(t, apperror.IsPortUnavailable(err), "release from non-owner must not clear the reservation")

	a.ReleaseFixed(9000, "cfg/app-a")
	require.NoError(t, a.ReserveFixed(9000, "cfg/app-b"))
}
