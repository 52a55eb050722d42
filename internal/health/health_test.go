package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
	"github.com/stretchr/testify/require"
)

func TestProbeHTTPHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := Probe(context.Background(), appmodel.HealthCheckSpec{Kind: appmodel.HealthHTTP, URL: srv.URL, Timeout: appmodel.Seconds(time.Second)}, Context{})
	require.Equal(t, appmodel.HealthHealthy, v)
}

func TestProbeHTTPUnhealthyOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := Probe(context.Background(), appmodel.HealthCheckSpec{Kind: appmodel.HealthHTTP, URL: srv.URL, Timeout: appmodel.Seconds(time.Second)}, Context{})
	require.Equal(t, appmodel.HealthUnhealthy, v)
}

func TestProbeHTTPUnhealthyOnUnreachable(t *testing.T) {
	v := Probe(context.Background(), appmodel.HealthCheckSpec{Kind: appmodel.HealthHTTP, URL: "http://127.0.0.1:1", Timeout: appmodel.Seconds(200 * time.Millisecond)}, Context{})
	require.Equal(t, appmodel.HealthUnhealthy, v)
}

func TestProbeTCPHealthy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	v := Probe(context.Background(), appmodel.HealthCheckSpec{Kind: appmodel.HealthTCP, Port: port, Timeout: appmodel.Seconds(time.Second)}, Context{})
	require.Equal(t, appmodel.HealthHealthy, v)
}

func TestProbeTCPUnhealthyWhenNothingListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	v := Probe(context.Background(), appmodel.HealthCheckSpec{Kind: appmodel.HealthTCP, Port: port, Timeout: appmodel.Seconds(200 * time.Millisecond)}, Context{})
	require.Equal(t, appmodel.HealthUnhealthy, v)
}

func TestProbeTCPUsesAllocatedPortFallback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			_ = c.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	v := Probe(context.Background(), appmodel.HealthCheckSpec{Kind: appmodel.HealthTCP, Timeout: appmodel.Seconds(time.Second)}, Context{AllocatedPort: port})
	require.Equal(t, appmodel.HealthHealthy, v)
}

func TestProbeProcessHealthyForLiveProcess(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	require.NoError(t, cmd.Start())
	defer func() { _ = cmd.Process.Kill(); _ = cmd.Wait() }()

	v := Probe(context.Background(), appmodel.HealthCheckSpec{Kind: appmodel.HealthProcess}, Context{PID: cmd.Process.Pid})
	require.Equal(t, appmodel.HealthHealthy, v)
}

func TestProbeProcessUnhealthyForDeadPID(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())

	v := Probe(context.Background(), appmodel.HealthCheckSpec{Kind: appmodel.HealthProcess}, Context{PID: cmd.Process.Pid})
	require.Equal(t, appmodel.HealthUnhealthy, v)
}

func TestProbeUnknownKindIsUnknown(t *testing.T) {
	v := Probe(context.Background(), appmodel.HealthCheckSpec{Kind: "bogus"}, Context{})
	require.Equal(t, appmodel.HealthUnknown, v)
}

func TestIsZombieLinuxFalseOnNonexistentPID(t *testing.T) {
	require.False(t, isZombieLinux(1<<30))
}

func TestPidAliveFalseForNonPositive(t *testing.T) {
	require.False(t, pidAlive(0))
	require.False(t, pidAlive(-1))
}

func TestPidAliveTrueForSelf(t *testing.T) {
	require.True(t, pidAlive(os.Getpid()))
}
