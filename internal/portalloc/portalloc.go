// Package portalloc implements the Port Allocator (spec.md §4.1), grounded
// on the bind-to-port-0 pattern in original_source's port_manager.py and the
// teacher's pattern of guarding shared reservation state behind one mutex.
package portalloc

import (
	"fmt"
	"net"
	"sync"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
)

// Allocator tracks outstanding port reservations in memory.
type Allocator struct {
	mu        sync.Mutex
	reserved  map[int]bool
	fixedHeld map[int]string // fixed port -> owning app key, for collision checks
}

func New() *Allocator {
	return &Allocator{
		reserved:  make(map[int]bool),
		fixedHeld: make(map[int]string),
	}
}

// Allocate binds to port 0 on loopback, reads the OS-assigned port, closes
// the socket, and reserves it. On collision with an already-reserved port
// (a narrow race between close and reservation bookkeeping) it retries.
func (a *Allocator) Allocate() (int, error) {
	for attempt := 0; attempt < 20; attempt++ {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return 0, apperror.Wrap(apperror.PortUnavailable, "bind ephemeral port", err)
		}
		port := l.Addr().(*net.TCPAddr).Port
		_ = l.Close()

		a.mu.Lock()
		if a.reserved[port] {
			a.mu.Unlock()
			continue
		}
		a.reserved[port] = true
		a.mu.Unlock()
		return port, nil
	}
	return 0, apperror.New(apperror.PortUnavailable, "could not obtain a free ephemeral port after retries")
}

// Release marks port as no longer reserved. Idempotent.
func (a *Allocator) Release(port int) {
	if port == 0 {
		return
	}
	a.mu.Lock()
	delete(a.reserved, port)
	a.mu.Unlock()
}

// ReserveFixed verifies no other managed application currently holds the
// given fixed port and records ownership under ownerKey (typically
// "<config_id>/<app_id>").
func (a *Allocator) ReserveFixed(port int, ownerKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if owner, held := a.fixedHeld[port]; held && owner != ownerKey {
		return apperror.WithDetails(apperror.PortUnavailable,
			fmt.Sprintf("port %d already held by %s", port, owner),
			map[string]any{"port": port, "owner": owner})
	}
	a.fixedHeld[port] = ownerKey
	return nil
}

// ReleaseFixed releases a fixed-port reservation owned by ownerKey.
func (a *Allocator) ReleaseFixed(port int, ownerKey string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fixedHeld[port] == ownerKey {
		delete(a.fixedHeld, port)
	}
}
