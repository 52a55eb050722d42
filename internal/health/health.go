// Package health implements the Health Prober (spec.md §4.2): a pure,
// stateless per-call probe function. The process-zombie check is grounded in
// the teacher's internal/process.isZombieLinux; the http/tcp semantics are
// grounded in original_source's _check_http_health/_check_tcp_health.
package health

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// Context carries the facts a probe needs beyond the spec itself.
type Context struct {
	AllocatedPort int
	PID           int
}

var httpClient = &http.Client{}

// Probe executes spec against ctx and returns a verdict, never blocking
// longer than spec.Timeout.
func Probe(ctx context.Context, spec appmodel.HealthCheckSpec, hc Context) appmodel.HealthVerdict {
	timeout := spec.Timeout.Duration()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	switch spec.Kind {
	case appmodel.HealthHTTP:
		return probeHTTP(ctx, spec.URL, timeout)
	case appmodel.HealthTCP:
		port := spec.Port
		if port == 0 {
			port = hc.AllocatedPort
		}
		return probeTCP(port, timeout)
	case appmodel.HealthProcess:
		return probeProcess(hc.PID)
	default:
		return appmodel.HealthUnknown
	}
}

func probeHTTP(ctx context.Context, url string, timeout time.Duration) appmodel.HealthVerdict {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return appmodel.HealthUnhealthy
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return appmodel.HealthUnhealthy
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return appmodel.HealthHealthy
	}
	return appmodel.HealthUnhealthy
}

func probeTCP(port int, timeout time.Duration) appmodel.HealthVerdict {
	if port == 0 {
		return appmodel.HealthUnhealthy
	}
	conn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), timeout)
	if err != nil {
		return appmodel.HealthUnhealthy
	}
	_ = conn.Close()
	return appmodel.HealthHealthy
}

func probeProcess(pid int) appmodel.HealthVerdict {
	if pid <= 0 {
		return appmodel.HealthUnhealthy
	}
	if isZombieLinux(pid) {
		return appmodel.HealthUnhealthy
	}
	if pidAlive(pid) {
		return appmodel.HealthHealthy
	}
	return appmodel.HealthUnhealthy
}

func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return strings.Contains(string(b), "State:\tZ")
}
