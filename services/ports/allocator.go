// Package ports picks free host ports for published container ports.
//
// A port is found by binding an OS-assigned ephemeral port and releasing it
// straight away. Nothing stops another process from grabbing the same port
// before the container runtime binds it; that race is accepted.
package ports

import (
	"errors"
	"fmt"
	"net"

	"github.com/ezenkico/useintest/models"
)

// ErrNoFreePort wraps every failure to obtain a port from the OS.
var ErrNoFreePort = errors.New("no free port available")

// Allocator hands out free TCP ports on a local interface.
type Allocator struct {
	// Address to bind while probing, "127.0.0.1" when empty
	Host string
}

func NewAllocator() *Allocator {
	return &Allocator{Host: "127.0.0.1"}
}

// Allocate returns n distinct free ports. All n listeners are held open
// until every port is known so the OS cannot hand out the same port twice.
func (a *Allocator) Allocate(n int) ([]int, error) {
	host := a.Host
	if host == "" {
		host = "127.0.0.1"
	}

	listeners := make([]net.Listener, 0, n)
	defer func() {
		for _, l := range listeners {
			_ = l.Close()
		}
	}()

	out := make([]int, 0, n)
	for range n {
		l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoFreePort, err)
		}
		listeners = append(listeners, l)
		out = append(out, l.Addr().(*net.TCPAddr).Port)
	}
	return out, nil
}

// Map allocates one host port per container port and pairs them in
// declaration order.
func (a *Allocator) Map(containerPorts []int) (models.PortMapping, error) {
	hostPorts, err := a.Allocate(len(containerPorts))
	if err != nil {
		return models.PortMapping{}, err
	}

	bindings := make([]models.BindingSpec, 0, len(containerPorts))
	for i, c := range containerPorts {
		bindings = append(bindings, models.BindingSpec{ContainerPort: c, HostPort: hostPorts[i]})
	}
	return models.NewPortMapping(bindings...)
}
