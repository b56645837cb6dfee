package models

import (
	"encoding/json"
	"fmt"
)

// PortMapping is a bijection between container ports and host ports. The
// zero value is an empty mapping. Declaration order is preserved.
type PortMapping struct {
	order   []int
	forward map[int]int // container -> host
	reverse map[int]int // host -> container
}

// NewPortMapping builds a mapping from the given bindings, rejecting any
// container or host port that appears twice.
func NewPortMapping(bindings ...BindingSpec) (PortMapping, error) {
	m := PortMapping{
		forward: make(map[int]int, len(bindings)),
		reverse: make(map[int]int, len(bindings)),
	}
	for _, b := range bindings {
		if _, ok := m.forward[b.ContainerPort]; ok {
			return PortMapping{}, fmt.Errorf("container port %d mapped twice", b.ContainerPort)
		}
		if _, ok := m.reverse[b.HostPort]; ok {
			return PortMapping{}, fmt.Errorf("host port %d mapped twice", b.HostPort)
		}
		m.order = append(m.order, b.ContainerPort)
		m.forward[b.ContainerPort] = b.HostPort
		m.reverse[b.HostPort] = b.ContainerPort
	}
	return m, nil
}

// Len returns the number of mapped ports.
func (m PortMapping) Len() int { return len(m.order) }

// HostPort returns the host port the given container port is published on.
func (m PortMapping) HostPort(containerPort int) (int, bool) {
	p, ok := m.forward[containerPort]
	return p, ok
}

// ContainerPort returns the container port behind the given host port.
func (m PortMapping) ContainerPort(hostPort int) (int, bool) {
	p, ok := m.reverse[hostPort]
	return p, ok
}

// ContainerPorts returns the container ports in declaration order.
func (m PortMapping) ContainerPorts() []int {
	return append([]int(nil), m.order...)
}

// HostPorts returns the host ports in container port declaration order.
func (m PortMapping) HostPorts() []int {
	out := make([]int, 0, len(m.order))
	for _, c := range m.order {
		out = append(out, m.forward[c])
	}
	return out
}

// Bindings returns the mapping as an ordered list of pairs.
func (m PortMapping) Bindings() []BindingSpec {
	out := make([]BindingSpec, 0, len(m.order))
	for _, c := range m.order {
		out = append(out, BindingSpec{ContainerPort: c, HostPort: m.forward[c]})
	}
	return out
}

func (m PortMapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Bindings())
}

func (m *PortMapping) UnmarshalJSON(b []byte) error {
	var bindings []BindingSpec
	if err := json.Unmarshal(b, &bindings); err != nil {
		return err
	}
	parsed, err := NewPortMapping(bindings...)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
